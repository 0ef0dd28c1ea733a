package ldap

import (
	"encoding/base64"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bwmarrin/go-objectsid"
	"github.com/google/uuid"
)

// GUIDBytesLength is the length of a binary objectGUID.
const GUIDBytesLength = 16

// FormatValue renders an attribute value for display. Known binary
// attributes are decoded (objectSid as S-1-..., objectGUID in canonical
// form), printable text is returned unchanged and anything else is base64.
func FormatValue(attr string, value []byte) string {
	switch strings.ToLower(attr) {
	case "objectsid", "securityidentifier":
		if s, ok := formatSID(value); ok {
			return s
		}
	case "objectguid":
		if s, ok := formatGUID(value); ok {
			return s
		}
	}

	if isPrintable(value) {
		return string(value)
	}
	return base64.StdEncoding.EncodeToString(value)
}

// formatSID decodes a binary SID. The layout is revision, sub-authority
// count, a 6-byte authority and count 4-byte sub-authorities.
func formatSID(value []byte) (string, bool) {
	if len(value) < 8 || len(value) < 8+4*int(value[1]) {
		return "", false
	}
	return objectsid.Decode(value).String(), true
}

// formatGUID converts the mixed-endian Active Directory layout to the
// canonical string form.
func formatGUID(value []byte) (string, bool) {
	if len(value) != GUIDBytesLength {
		return "", false
	}

	std := make([]byte, GUIDBytesLength)
	// Data1, Data2 and Data3 are little-endian; Data4 is kept as is
	std[0], std[1], std[2], std[3] = value[3], value[2], value[1], value[0]
	std[4], std[5] = value[5], value[4]
	std[6], std[7] = value[7], value[6]
	copy(std[8:], value[8:])

	id, err := uuid.FromBytes(std)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func isPrintable(value []byte) bool {
	if !utf8.Valid(value) {
		return false
	}
	for _, r := range string(value) {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
