package relay

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/gookit/color"

	"github.com/yusiwen/rtsp4k/models"
)

// PrintStatus writes a PASS/FAIL table of all sessions sorted by route.
func (r *Registry) PrintStatus(w io.Writer) {
	writeStatusTable(w, r.List())
}

func writeStatusTable(w io.Writer, sessions map[string]models.StreamSession) {
	routes := make([]string, 0, len(sessions))
	for route := range sessions {
		routes = append(routes, route)
	}
	sort.Strings(routes)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Status\tRoute\tURL\tSource")
	for _, route := range routes {
		s := sessions[route]
		status := color.Red.Sprint("FAIL")
		if s.Ok() {
			status = color.Green.Sprint("PASS")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", status, route, s.URL, s.Input)
	}
	tw.Flush()
}
