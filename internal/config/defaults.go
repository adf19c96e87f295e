package config

const (
	defaultLibraryDir     = "~/.local/share/cartkeep/library"
	defaultStorePath      = "~/.local/share/cartkeep/collection.csv"
	defaultLogDir         = "~/.local/share/cartkeep/logs"
	defaultExportDir      = "~/.local/share/cartkeep/exports"
	defaultOrganization   = "single"
	defaultCase           = "unchanged"
	defaultSyncWorkers    = 4
	defaultUserAgent      = "cartkeep/dev"
	defaultNetworkTimeout = 60
	defaultTIC80BaseURL   = "https://tic80.com"
	defaultItchBaseURL    = "https://itch.io"
	defaultItchHeaderFile = "~/.config/cartkeep/itch_headers.txt"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// defaultIPFSGateways lists the public gateways tried, in order, for
// content-addressed ROM sources.
var defaultIPFSGateways = []string{
	"gateway.ipfs.io",
	"ipfs.io",
	"gateway.pinata.cloud",
	"dweb.link",
	"cf-ipfs.com",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			StorePath:  defaultStorePath,
			LogDir:     defaultLogDir,
			ExportDir:  defaultExportDir,
		},
		Naming: Naming{
			Organization:   defaultOrganization,
			CategorySuffix: true,
			UseOverrides:   true,
			Case:           defaultCase,
		},
		Sync: Sync{
			Workers: defaultSyncWorkers,
		},
		Network: Network{
			UserAgent:      defaultUserAgent,
			TimeoutSeconds: defaultNetworkTimeout,
			IPFSGateways:   defaultIPFSGateways,
		},
		Providers: Providers{
			TIC80: TIC80{
				Enabled: true,
				BaseURL: defaultTIC80BaseURL,
			},
			Itch: Itch{
				BaseURL:    defaultItchBaseURL,
				HeaderFile: defaultItchHeaderFile,
			},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
