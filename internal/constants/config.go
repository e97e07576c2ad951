package constants

// ConfigDirName is the name of the configuration directory in the user's home directory.
const ConfigDirName = "." + ProjectName

// ConfigFileName is the name of the global configuration file.
const ConfigFileName = "config.yaml"

// TokenFileName is the name of the file holding the persisted access token.
const TokenFileName = "session.yaml"

// EnvPrefix is the prefix of every environment variable read by the configuration layer.
const EnvPrefix = "PROPDESK"

// ConfigDirPath returns the full path to the global configuration directory.
func ConfigDirPath(homeDir string) string {
	return homeDir + "/" + ConfigDirName
}

// ConfigFilePath returns the full path to the global configuration file.
func ConfigFilePath(homeDir string) string {
	return ConfigDirPath(homeDir) + "/" + ConfigFileName
}

// TokenFilePath returns the default location of the token store file.
func TokenFilePath(homeDir string) string {
	return ConfigDirPath(homeDir) + "/" + TokenFileName
}

// ConfigDirPermissions is the file system permissions for config directory (0750).
const ConfigDirPermissions = 0o750

// ConfigFilePermissions is the file system permissions for config and token files (0600).
const ConfigFilePermissions = 0o600

// CookieFileName is the name of the file holding the persisted session cookies.
const CookieFileName = "cookies.yaml"
