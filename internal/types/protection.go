package types

import "fmt"

// ProtectionClass identifies the data protection class a file or keychain
// item was stored under on the device.
type ProtectionClass uint32

// File protection classes (1-4) and keychain protection classes (5-11).
const (
	ProtectionClassComplete                 ProtectionClass = 1
	ProtectionClassCompleteUnlessOpen       ProtectionClass = 2
	ProtectionClassCompleteUntilFirstAuth   ProtectionClass = 3
	ProtectionClassNone                     ProtectionClass = 4
	ProtectionClassWhenUnlocked             ProtectionClass = 6
	ProtectionClassAfterFirstUnlock         ProtectionClass = 7
	ProtectionClassAlways                   ProtectionClass = 8
	ProtectionClassWhenUnlockedThisDevice   ProtectionClass = 9
	ProtectionClassAfterFirstUnlockThisDev  ProtectionClass = 10
	ProtectionClassAlwaysThisDeviceOnly     ProtectionClass = 11
)

// String returns a human-readable name for the protection class.
func (c ProtectionClass) String() string {
	switch c {
	case ProtectionClassComplete:
		return "Complete Protection"
	case ProtectionClassCompleteUnlessOpen:
		return "Protected Unless Open"
	case ProtectionClassCompleteUntilFirstAuth:
		return "Protected Until First User Authentication"
	case ProtectionClassNone:
		return "No Protection"
	case ProtectionClassWhenUnlocked:
		return "Accessible When Unlocked"
	case ProtectionClassAfterFirstUnlock:
		return "Accessible After First Unlock"
	case ProtectionClassAlways:
		return "Always Accessible"
	case ProtectionClassWhenUnlockedThisDevice:
		return "Accessible When Unlocked (This Device Only)"
	case ProtectionClassAfterFirstUnlockThisDev:
		return "Accessible After First Unlock (This Device Only)"
	case ProtectionClassAlwaysThisDeviceOnly:
		return "Always Accessible (This Device Only)"
	default:
		return fmt.Sprintf("Unknown Protection Class (%d)", uint32(c))
	}
}
