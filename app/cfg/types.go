package cfg

type Cfg struct {
	// Storage
	DBPath   string
	FeedsDir string
	LockFile string
	LogFile  string

	// Download daemon
	TransmissionURL      string
	TransmissionUser     string
	TransmissionPassword string
	TransmissionTimeout  int
	DaemonFetch          bool
	SeedRatio            float64

	// Notifications
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	NotifyTo     string
	NotifyFrom   string
	NtfyURL      string
	NtfyTopic    string

	// Serve mode
	Serve        bool
	Schedule     string
	Port         string
	APIAccessKey string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
