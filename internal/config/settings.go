package config

// Settings is the typed view of the fully merged configuration. Components
// downstream of resolution receive a Settings snapshot rather than the
// layered store.
type Settings struct {
	Global GlobalSettings  `koanf:"global"`
	Client BindingSettings `koanf:"client"`
	Engine BindingSettings `koanf:"engine"`
}

// GlobalSettings holds process-wide configuration.
type GlobalSettings struct {
	// ClusterDir is the controller's working directory. Empty selects
	// profile-based resolution.
	ClusterDir string `koanf:"cluster_dir"`
	// Profile names a conventionally located cluster directory
	// (cluster_<profile>) when ClusterDir is empty.
	Profile string `koanf:"profile"`
	// ReuseFurls is the process-wide default for per-binding credential
	// reuse.
	ReuseFurls bool   `koanf:"reuse_furls"`
	LogToFile  bool   `koanf:"log_to_file"`
	LogLevel   string `koanf:"log_level"`
	LogFormat  string `koanf:"log_format"`
	// ImportStatements are CEL expressions evaluated once during startup.
	// Failures are logged and skipped.
	ImportStatements []string `koanf:"import_statements"`

	SecurityDirName string `koanf:"security_dir_name"`
	LogDirName      string `koanf:"log_dir_name"`

	// SecurityDir and LogDir are recorded by the provisioner after the
	// directory tree exists; they are outputs, not inputs.
	SecurityDir string `koanf:"security_dir"`
	LogDir      string `koanf:"log_dir"`
}

// BindingSettings configures one RPC listener surface.
type BindingSettings struct {
	// IP is the listen address. Empty listens on all interfaces.
	IP string `koanf:"ip"`
	// Port 0 selects an ephemeral port.
	Port int `koanf:"port"`
	// Location is the hostname or IP that remote peers should connect to.
	// Empty falls back to the listen address.
	Location string `koanf:"location"`
	Secure   bool   `koanf:"secure"`
	CertFile string `koanf:"cert_file"`
	// ReuseFurls overrides Global.ReuseFurls for this binding when set.
	ReuseFurls *bool `koanf:"reuse_furls"`
}

// AppName is the process name used for log files, credential file defaults
// and the config file name.
const AppName = "ipcontroller"

// ConfigFileName is the per-cluster configuration file looked up inside the
// cluster directory.
const ConfigFileName = "ipcontroller_config.yaml"

// Default returns the built-in configuration layer.
func Default() Settings {
	return Settings{
		Global: GlobalSettings{
			ClusterDir:      "",
			Profile:         "default",
			ReuseFurls:      false,
			LogToFile:       false,
			LogLevel:        "info",
			LogFormat:       "text",
			SecurityDirName: "security",
			LogDirName:      "log",
		},
		Client: BindingSettings{
			Secure:   true,
			CertFile: "ipcontroller-client.pem",
		},
		Engine: BindingSettings{
			Secure:   true,
			CertFile: "ipcontroller-engine.pem",
		},
	}
}
