package app

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/labsync/internal/booking"
	"github.com/shrimpsizemoose/labsync/internal/slots"
)

// AccountConfig is a credential that lives in the config file rather than
// the users table. Either Email or EmailSuffix must be set.
type AccountConfig struct {
	Email        string `toml:"email"`
	EmailSuffix  string `toml:"email_suffix"`
	PasswordHash string `toml:"password_hash"`
	Role         string `toml:"role"`
	FirstName    string `toml:"first_name"`
	LastName     string `toml:"last_name"`
}

type LabConfig struct {
	Name          string `toml:"name"`
	Capacity      int    `toml:"capacity"`
	LatestSlot    string `toml:"latest_slot"`
	Restricted    bool   `toml:"restricted"`
	GroupBookings bool   `toml:"group_bookings"`
	Rules         string `toml:"rules"`
}

type GSheetConfig struct {
	CredentialsPath string `toml:"credentials_path"`
	SheetID         string `toml:"sheet_id"`
}

type Config struct {
	Server struct {
		Port     string `toml:"port"`
		Timezone string `toml:"timezone"`
	} `toml:"server"`

	Database struct {
		DSN string `toml:"dsn"`
	} `toml:"database"`

	Auth struct {
		RedisURL    string `toml:"redis_url"`
		SessionTTL  string `toml:"session_ttl"`
		TokenHeader string `toml:"token_header"`
		// Login and registration attempts allowed per client.
		LoginPerMinute int             `toml:"login_per_minute"`
		LoginBurst     int             `toml:"login_burst"`
		Accounts       []AccountConfig `toml:"accounts"`
	} `toml:"auth"`

	Registration struct {
		StudentDomain string `toml:"student_domain"`
		StaffDomain   string `toml:"staff_domain"`
	} `toml:"registration"`

	Schedule struct {
		Opening           string `toml:"opening"`
		Closing           string `toml:"closing"`
		SlotMinutes       int    `toml:"slot_minutes"`
		MaxTempAccessDays int    `toml:"max_temp_access_days"`
		RecentComments    int    `toml:"recent_comments"`
		GlobalRules       string `toml:"global_rules"`
	} `toml:"schedule"`

	Labs []LabConfig `toml:"labs"`

	Bot struct {
		Token    string  `toml:"token"`
		AdminIDs []int64 `toml:"admin_ids"`
	} `toml:"bot"`

	Export struct {
		Dir       string         `toml:"dir"`
		Schedule  string         `toml:"schedule"`
		DaysAhead int            `toml:"days_ahead"`
		GSheet    []GSheetConfig `toml:"gsheet"`
	} `toml:"export"`
}

const defaultRules = `Lab booking rules:
- Respect the equipment and furniture.
- No food or drinks inside the lab.
- Keep strictly to the booked time.
- Ask for permission before using special equipment.
- Leave the lab clean and tidy.`

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s\n> Error: %w", path, err)
	}

	logger.Debug.Printf("Loaded %d labs, %d config accounts", len(config.Labs), len(config.Auth.Accounts))

	return config, nil
}

func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Schedule.Opening == "" {
		c.Schedule.Opening = "08:00"
	}
	if c.Schedule.Closing == "" {
		c.Schedule.Closing = "20:00"
	}
	if c.Schedule.SlotMinutes == 0 {
		c.Schedule.SlotMinutes = 30
	}
	if c.Schedule.MaxTempAccessDays == 0 {
		c.Schedule.MaxTempAccessDays = 365
	}
	if c.Schedule.RecentComments == 0 {
		c.Schedule.RecentComments = 10
	}
	if c.Schedule.GlobalRules == "" {
		c.Schedule.GlobalRules = defaultRules
	}
	if c.Auth.SessionTTL == "" {
		c.Auth.SessionTTL = "12h"
	}
	if c.Auth.TokenHeader == "" {
		c.Auth.TokenHeader = "Authorization"
	}
	if c.Auth.LoginPerMinute == 0 {
		c.Auth.LoginPerMinute = 30
	}
	if c.Auth.LoginBurst == 0 {
		c.Auth.LoginBurst = 10
	}
	if c.Export.Schedule == "" {
		c.Export.Schedule = "*/15 * * * *"
	}
	for i := range c.Labs {
		if c.Labs[i].Rules == "" {
			c.Labs[i].Rules = defaultRules
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("Server port is not specified in config, use a value like :9999")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is not specified in config")
	}
	if len(c.Labs) == 0 {
		return fmt.Errorf("at least one [[labs]] entry is required")
	}
	if _, err := c.Grid(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.SessionTTL(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, lab := range c.Labs {
		if lab.Name == "" {
			return fmt.Errorf("lab without a name")
		}
		if seen[lab.Name] {
			return fmt.Errorf("lab %s is configured twice", lab.Name)
		}
		seen[lab.Name] = true
		if lab.Capacity <= 0 {
			return fmt.Errorf("lab %s needs a positive capacity", lab.Name)
		}
	}

	for _, acc := range c.Auth.Accounts {
		if (acc.Email == "") == (acc.EmailSuffix == "") {
			return fmt.Errorf("config account needs exactly one of email or email_suffix")
		}
		if acc.PasswordHash == "" {
			return fmt.Errorf("config account %s%s has no password_hash", acc.Email, acc.EmailSuffix)
		}
		switch acc.Role {
		case "admin", "lab_admin":
		default:
			return fmt.Errorf("config account %s%s has unsupported role %q", acc.Email, acc.EmailSuffix, acc.Role)
		}
	}
	return nil
}

func (c *Config) Grid() (*slots.Grid, error) {
	return slots.NewGrid(c.Schedule.Opening, c.Schedule.Closing, c.Schedule.SlotMinutes)
}

func (c *Config) Location() (*time.Location, error) {
	if c.Server.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Server.Timezone, err)
	}
	return loc, nil
}

func (c *Config) SessionTTL() (time.Duration, error) {
	ttl, err := time.ParseDuration(c.Auth.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid session_ttl %q: %w", c.Auth.SessionTTL, err)
	}
	return ttl, nil
}

// BookingLabs returns the configured labs with capacity overrides applied.
func (c *Config) BookingLabs(capacities map[string]int) []booking.Lab {
	labs := make([]booking.Lab, 0, len(c.Labs))
	for _, l := range c.Labs {
		capacity := l.Capacity
		if override, ok := capacities[l.Name]; ok {
			capacity = override
		}
		labs = append(labs, booking.Lab{
			Name:          l.Name,
			Capacity:      capacity,
			LatestSlot:    l.LatestSlot,
			Restricted:    l.Restricted,
			GroupBookings: l.GroupBookings,
		})
	}
	return labs
}
