package config

import (
	"github.com/spf13/viper"
)

type (
	Config struct {
		Database
		Circulation
		ConsistencyAudit
		Audit
	}

	Database struct {
		Path string
	}

	// Circulation holds the lending policy applied when loans are created
	// and closed.
	Circulation struct {
		LoanPeriodDays int
		FinePerDay     float64
	}

	ConsistencyAudit struct {
		Enabled  bool
		Schedule string // Cron format: "0 * * * *" = hourly
	}

	Audit struct {
		RetentionDays int // Days to keep circulation events (default: 365)
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("loan_period_days", DefaultLoanPeriodDays)
	v.SetDefault("fine_per_day", DefaultFinePerDay)
	v.SetDefault("consistency_audit_enabled", true)
	v.SetDefault("consistency_audit_schedule", "0 * * * *") // Hourly at :00
	v.SetDefault("audit_retention_days", 365)

	return &Config{
		Database: Database{
			Path: v.GetString("database_path"),
		},
		Circulation: Circulation{
			LoanPeriodDays: v.GetInt("loan_period_days"),
			FinePerDay:     v.GetFloat64("fine_per_day"),
		},
		ConsistencyAudit: ConsistencyAudit{
			Enabled:  v.GetBool("consistency_audit_enabled"),
			Schedule: v.GetString("consistency_audit_schedule"),
		},
		Audit: Audit{
			RetentionDays: v.GetInt("audit_retention_days"),
		},
	}
}
