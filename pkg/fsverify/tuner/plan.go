package tuner

// Worker limits.
const (
	// maxHashWorkers caps the hashing pool of one image.
	maxHashWorkers = 64

	// minHashWorkers keeps hashing parallel on small systems since it
	// mostly waits on disk.
	minHashWorkers = 4

	// maxImageWorkers caps the number of images validated at once.
	maxImageWorkers = 16
)

// bytesPerImage estimates the memory one image validation holds: the raw
// listings, the parsed record sets and their projections.
const bytesPerImage = 256 * 1024 * 1024

// Plan contains worker counts tuned for the detected system resources.
type Plan struct {
	// ImageWorkers is the number of images validated in parallel.
	ImageWorkers int

	// HashWorkers is the number of files hashed in parallel per image.
	HashWorkers int
}

// Calculate returns the worker plan for the given resources.
//
// The calculation logic:
//   - ImageWorkers: half the cores, bounded by how many image validations
//     fit in available RAM, at least 1 and at most 16
//   - HashWorkers: NumCPU * 2, at least 4 and at most 64
func Calculate(resources SystemResources) Plan {
	imageWorkers := resources.CPUCores / 2
	byMemory := int(resources.AvailableRAM / bytesPerImage)
	imageWorkers = min(imageWorkers, byMemory)
	imageWorkers = max(imageWorkers, 1)
	imageWorkers = min(imageWorkers, maxImageWorkers)

	hashWorkers := resources.CPUCores * 2
	hashWorkers = max(hashWorkers, minHashWorkers)
	hashWorkers = min(hashWorkers, maxHashWorkers)

	return Plan{
		ImageWorkers: imageWorkers,
		HashWorkers:  hashWorkers,
	}
}

// CalculateWithOverrides applies user overrides to the calculated plan.
// An override greater than 0 replaces the calculated value; hash workers
// still respect the cap of 64.
func CalculateWithOverrides(resources SystemResources, imageWorkers, hashWorkers int) Plan {
	plan := Calculate(resources)

	if imageWorkers > 0 {
		plan.ImageWorkers = imageWorkers
	}
	if hashWorkers > 0 {
		plan.HashWorkers = min(hashWorkers, maxHashWorkers)
	}

	return plan
}
