package relay

import (
	"fmt"
	"strings"

	"github.com/teris-io/shortid"
)

const DefaultServer = "localhost:8554"

// TrimRoute strips leading slashes. Lookups of existing routes use it.
func TrimRoute(name string) string {
	return strings.TrimLeft(name, "/")
}

// NormalizeRoute trims name like TrimRoute and names anonymous routes.
func NormalizeRoute(name string) string {
	name = TrimRoute(name)
	if name == "" {
		name = shortid.MustGenerate()
	}
	return name
}

// StreamURL is the address subscribers use for route.
func StreamURL(server, route string) string {
	if server == "" {
		server = DefaultServer
	}
	return strings.ReplaceAll(fmt.Sprintf("rtsp://%s/%s", server, route), " ", "-")
}
