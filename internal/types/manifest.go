package types

import "time"

// DeviceInfo carries the lockdown metadata stored alongside the backup.
type DeviceInfo struct {
	DeviceName     string `plist:"DeviceName"`
	ProductType    string `plist:"ProductType"`
	ProductVersion string `plist:"ProductVersion"`
	BuildVersion   string `plist:"BuildVersion"`
	SerialNumber   string `plist:"SerialNumber"`
	UniqueDeviceID string `plist:"UniqueDeviceID"`
}

// DirectoryStat is one row of the manifest's top-level directory summary:
// how many records a domain holds under one of its top directories. An
// empty Directory groups the records sitting at the domain root.
type DirectoryStat struct {
	Domain    string
	Directory string
	Count     int64
}

// ManifestInfo is the small metadata file stored next to the keybag in the
// backup directory. It holds the raw keybag blob, the wrapped manifest
// database key, and the key-derivation parameters consumed during unlock.
type ManifestInfo struct {
	Version        string     `plist:"Version"`
	Date           time.Time  `plist:"Date"`
	IsEncrypted    bool       `plist:"IsEncrypted"`
	WasPasscodeSet bool       `plist:"WasPasscodeSet"`
	Lockdown       DeviceInfo `plist:"Lockdown"`

	// BackupKeyBag is the opaque binary keybag blob.
	BackupKeyBag []byte `plist:"BackupKeyBag"`

	// ManifestKey is the manifest database's bootstrap key: a 4-byte
	// little-endian protection class followed by the wrapped key. It is
	// stored alongside, not inside, the keybag.
	ManifestKey []byte `plist:"ManifestKey"`
}
