// Package config provides configuration management for fsverify.
package config

// Default configuration values for fsverify.
const (
	// DefaultMountPath is where images are mounted for the OS-side listing.
	DefaultMountPath = "/mnt/loop"

	// DefaultImageDir holds created or supplied image files.
	DefaultImageDir = "images"

	// DefaultCaptureDir holds one capture directory per image.
	DefaultCaptureDir = "captures"

	// DefaultRecoverDir receives files extracted by tsk_recover.
	DefaultRecoverDir = ".files"

	// DefaultWorkers is the number of images validated in parallel.
	DefaultWorkers = 1

	// DefaultOutput is the default report format.
	DefaultOutput = "pretty"

	// DefaultRetentionDays is the default number of days to keep run history.
	DefaultRetentionDays = 30
)
