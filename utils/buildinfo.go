package utils

import "fmt"

// set via -ldflags at build time
var BuildVersion string
var BuildRelease string
var Buildtime string

func GetVersion() string {
	if BuildVersion == "" {
		return "dev"
	}
	if BuildRelease == "" {
		return fmt.Sprintf("git-%v", BuildVersion)
	}
	return fmt.Sprintf("%v (git-%v)", BuildRelease, BuildVersion)
}
