// Package domains names the backup locations of commonly requested device
// databases and media so callers do not have to memorize relative paths.
package domains

// Home is the domain holding the standard first-party databases.
const Home = "HomeDomain"

// CameraRoll is the domain holding the photo library.
const CameraRoll = "CameraRollDomain"

// Wireless is the domain holding telephony databases.
const Wireless = "WirelessDomain"

// Relative paths of commonly accessed files within their usual domains.
const (
	AddressBook     = "Library/AddressBook/AddressBook.sqlitedb"
	TextMessages    = "Library/SMS/sms.db"
	CallHistory     = "Library/CallHistoryDB/CallHistory.storedata"
	Notes           = "Library/Notes/notes.sqlite"
	Calendars       = "Library/Calendar/Calendar.sqlitedb"
	Health          = "Health/healthdb.sqlite"
	HealthSecure    = "Health/healthdb_secure.sqlite"
	SafariHistory   = "Library/Safari/History.db"
	SafariBookmarks = "Library/Safari/Bookmarks.db"

	// Third-party app databases live in their own app domains, so these
	// are best looked up by relative path alone.
	WhatsAppMessages = "ChatStorage.sqlite"
	WhatsAppContacts = "ContactsV2.sqlite"
)

// SQL LIKE patterns matching commonly accessed groups of files.
const (
	CameraRollPattern     = "Media/DCIM/%APPLE/IMG%.%"
	PhotoStreamPattern    = "Media/PhotoStreamsData/%.%"
	SMSAttachmentsPattern = "Library/SMS/Attachments/%.%"

	// WhatsApp keeps a .thumb next to every media item; the typed
	// patterns skip those.
	WhatsAppImagesPattern      = "Message/Media/%.jpg"
	WhatsAppVideosPattern      = "Message/Media/%.mp4"
	WhatsAppAttachmentsPattern = "Message/Media/%.%"
)

// WellKnownFile pairs a human-readable name with a backup location.
type WellKnownFile struct {
	Name         string
	Domain       string
	RelativePath string
}

// WellKnownFiles lists the lookups the command line exposes by name.
func WellKnownFiles() []WellKnownFile {
	return []WellKnownFile{
		{"address-book", Home, AddressBook},
		{"messages", Home, TextMessages},
		{"call-history", Home, CallHistory},
		{"notes", Home, Notes},
		{"calendars", Home, Calendars},
		{"health", Home, Health},
		{"health-secure", Home, HealthSecure},
		{"safari-history", Home, SafariHistory},
		{"safari-bookmarks", Home, SafariBookmarks},
	}
}

// Lookup resolves a well-known name to its backup location.
func Lookup(name string) (WellKnownFile, bool) {
	for _, f := range WellKnownFiles() {
		if f.Name == name {
			return f, true
		}
	}
	return WellKnownFile{}, false
}
