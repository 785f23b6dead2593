package constants

// CLIName is the prefix used in user-facing output to refer to the CLI
// binary.
const CLIName = "garden"

// EnvPrefix is the prefix for environment variables the CLI reads to
// override project, environment, and action-level variables.
const EnvPrefix = "GARDEN_"
