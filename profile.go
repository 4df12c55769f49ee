package governor

// DeviceClass is a coarse classification of the host device.
type DeviceClass int

const (
	// DeviceLowEnd covers devices expected to struggle with any GPU work:
	// software rasterizers, very old integrated chips, constrained VMs.
	DeviceLowEnd DeviceClass = iota

	// DeviceMobile covers battery-powered devices with integrated GPUs.
	DeviceMobile

	// DeviceDesktop covers mains-powered machines, typically with a
	// discrete or capable integrated GPU.
	DeviceDesktop
)

// String returns the device class name.
func (c DeviceClass) String() string {
	switch c {
	case DeviceLowEnd:
		return "lowEnd"
	case DeviceMobile:
		return "mobile"
	case DeviceDesktop:
		return "desktop"
	default:
		return "unknown"
	}
}

// APIGeneration is the supported graphics API generation of the device.
type APIGeneration int

const (
	// APINone means no usable GPU API was detected.
	APINone APIGeneration = iota

	// APIBasic means a render-pass-only API is available.
	APIBasic

	// APIAdvanced means compute-capable APIs (Vulkan/Metal/DX12 class)
	// are available.
	APIAdvanced
)

// String returns the API generation name.
func (g APIGeneration) String() string {
	switch g {
	case APINone:
		return "none"
	case APIBasic:
		return "basic"
	case APIAdvanced:
		return "advanced"
	default:
		return "unknown"
	}
}

// DeviceProfile is the one-shot classification produced by the capability
// probe at startup. It is immutable after creation; the controller keeps it
// only to seed the initial tier.
type DeviceProfile struct {
	Class           DeviceClass
	API             APIGeneration
	AdapterName     string
	RecommendedTier Tier
}

// conservativeProfile is what the probe falls back to on timeout, error or
// panic during detection.
func conservativeProfile() DeviceProfile {
	return DeviceProfile{
		Class:           DeviceLowEnd,
		API:             APINone,
		RecommendedTier: TierMinimum,
	}
}

// RecommendTier chooses the initial quality tier for a device class and API
// generation.
//
// Heuristics:
//   - No GPU API: minimum. The governor should barely run, not decorate.
//   - Low-end hardware never starts above acceptable, even with an
//     advanced API; the sampler can earn an upgrade later.
//   - Desktop with compute-class APIs starts at optimal; mobile is held
//     one tier lower because thermal throttling shows up minutes in,
//     well after the probe ran.
func RecommendTier(class DeviceClass, api APIGeneration) Tier {
	if api == APINone {
		return TierMinimum
	}
	switch class {
	case DeviceLowEnd:
		if api == APIAdvanced {
			return TierAcceptable
		}
		return TierMinimum
	case DeviceMobile:
		if api == APIAdvanced {
			return TierGood
		}
		return TierAcceptable
	case DeviceDesktop:
		if api == APIAdvanced {
			return TierOptimal
		}
		return TierGood
	default:
		return TierMinimum
	}
}
