// Package constants defines application-wide constants and version information.
package constants

import "runtime"

// AppName is the node's default device name on the command link.
const AppName = "soilnode"

// FirmwareVersion holds the application version information.
const FirmwareVersion = "1.4-" + runtime.GOOS + "/" + runtime.GOARCH

// HardwareVersion identifies the probe carrier board revision this build
// targets.
const HardwareVersion = "rev-c"
