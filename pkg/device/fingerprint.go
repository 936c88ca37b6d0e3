package device

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

// DeviceIDHeader lets native clients send their own installation id.
const DeviceIDHeader = "X-Device-ID"

// UnknownLocation is recorded while no geolocation database is configured.
const UnknownLocation = "unknown"

// Device classes
const (
	ClassDesktop = "Desktop"
	ClassMobile  = "Mobile"
	ClassTablet  = "Tablet"
)

// UserAgent is the parsed breakdown stored with refresh tokens and login audit
// entries. Fields are declared in key order so the JSON encoding is canonical.
type UserAgent struct {
	Browser string `json:"browser"`
	Device  string `json:"device"`
	OS      string `json:"os"`
}

// SessionContext describes the client a session is issued to.
type SessionContext struct {
	IP        string
	UserAgent UserAgent
	DeviceID  string
	Location  string
}

// FromRequest builds the SessionContext for r.
func FromRequest(r *http.Request) SessionContext {
	ua := ParseUserAgent(r.UserAgent())

	deviceID := strings.TrimSpace(r.Header.Get(DeviceIDHeader))
	if deviceID == "" {
		deviceID = GenerateDeviceID(ua)
	} else if len(deviceID) > 64 {
		deviceID = GenerateDeviceID(UserAgent{Device: deviceID})
	}

	return SessionContext{
		IP:        ClientIP(r),
		UserAgent: ua,
		DeviceID:  deviceID,
		Location:  UnknownLocation,
	}
}

// ParseUserAgent reduces a raw User-Agent header to browser, OS and device class.
func ParseUserAgent(raw string) UserAgent {
	ua := useragent.New(raw)

	name, version := ua.Browser()
	os := ua.OSInfo()

	class := ClassDesktop
	switch {
	case isTablet(raw):
		class = ClassTablet
	case ua.Mobile():
		class = ClassMobile
	}

	return UserAgent{
		Browser: strings.TrimSpace(name + " " + version),
		OS:      strings.TrimSpace(os.Name + " " + os.Version),
		Device:  class,
	}
}

func isTablet(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet") ||
		(strings.Contains(lower, "android") && !strings.Contains(lower, "mobile"))
}

// GenerateDeviceID hashes the canonical JSON of the breakdown.
func GenerateDeviceID(ua UserAgent) string {
	raw, err := json.Marshal(ua)
	if err != nil {
		slog.Error("Failed to encode user agent for device id", "err", err)
		raw = []byte(ua.Browser + "|" + ua.OS + "|" + ua.Device)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// ClientIP returns the first X-Forwarded-For entry without its port, or the
// host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return stripPort(first)
		}
	}
	return stripPort(r.RemoteAddr)
}

func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
