package constants

import "time"

// RolloverSource records which trigger path produced an archive.
type RolloverSource string

// CommitmentPolicy selects how active commitments survive a rollover.
type CommitmentPolicy string

const (
	AppName            = "leaderreps"
	DefaultKeyringUser = "database-connection"
	Version            = "v0.3.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// DefaultTimezone pins "today" for every user unless configured otherwise.
	DefaultTimezone = "America/New_York"

	// Document layout
	DailyPracticeCollection = "daily_practice"
	DailyLogsCollection     = "daily_logs"
	CurrentDocName          = "current"

	// Rollover sources
	SourceLazyClient RolloverSource = "lazy-client"
	SourceMidnight   RolloverSource = "midnight"
	SourceTimeTravel RolloverSource = "time-travel"

	// Commitment policies
	CommitmentsClear           CommitmentPolicy = "clear"
	CommitmentsPreservePending CommitmentPolicy = "preserve-pending"

	// Morning wins are always presented as a fixed number of slots.
	MorningWinSlots = 3

	// Calendar scan bounds
	PreviousEligibleScanLimit = 10
	NextEligibleScanLimit     = 100
	CurrentStreakWalkLimit    = 365

	// Offset persistence
	OffsetFileName = "time_travel_offset"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "leaderreps-"
	BackupFileSuffix = ".db"

	// Notify constants
	NotifierLockfileName   = "leaderreps-notifier.lock"
	NotificationDurationMs = 5000
	TrayAppIdentifier      = "com.leaderreps.tray"
	TrayExecutablePrefix   = "leaderreps-tray"

	// API
	DefaultListenAddr = ":8080"
	EventKeepAlive    = 25 * time.Second
)

// Config keys (TOML and environment)
const (
	ConfigUser             = "user"
	ConfigTimezone         = "timezone"
	ConfigCommitmentPolicy = "commitment_policy"
	ConfigDatabase         = "database"
	ConfigDebug            = "debug"
	ConfigJWTSecret        = "jwt_secret"

	EnvDBConnection = "LEADERREPS_DB_CONNECTION"
	EnvJWTSecret    = "LEADERREPS_JWT_SECRET"
)
