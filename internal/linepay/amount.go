package linepay

// SupportedCurrency is the only currency this integration accepts.
// TWD is zero-decimal on the LINE Pay side while the host stores
// amounts scaled by 100.
const SupportedCurrency = "TWD"

const minorUnitScale = 100

// ToProviderUnits converts a host amount in minor units (hundredths)
// to the whole-unit integer LINE Pay expects. Truncating division,
// never rounds up: 850 minor units is NT$8 on the wire.
func ToProviderUnits(minorUnits int64) (int64, error) {
	if minorUnits < 0 {
		return 0, ErrNegativeAmount
	}
	return minorUnits / minorUnitScale, nil
}
