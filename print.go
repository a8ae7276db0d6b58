package main

import (
	"fmt"
	"io"
	"math"
	"net"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/gosuri/uitable"

	"betterrest/internal/bedtime"
	"betterrest/internal/model"
)

func printCLI(w io.Writer, res estimateResult, details bool) {
	title := color.New(color.Bold)
	msg := color.New(color.FgGreen, color.Bold)
	if res.Failed() {
		msg = color.New(color.FgRed)
	}

	_, _ = title.Fprintln(w, res.Title)
	_, _ = msg.Fprintln(w, res.Message)

	if !details {
		return
	}

	faint := color.New(color.Faint)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(faint.Sprint("Wake up"), res.WakeTime)
	tbl.AddRow(faint.Sprint("Desired sleep"), bedtime.SleepLabel(res.SleepAmount))
	tbl.AddRow(faint.Sprint("Coffee"), bedtime.CoffeeLabel(res.CoffeeCups))
	if !res.Failed() {
		tbl.AddRow(faint.Sprint("Predicted sleep"), fmtHM(time.Duration(res.ActualSleepSeconds*float64(time.Second))))
		tbl.AddRow(faint.Sprint("Bedtime"), res.Bedtime)
	}
	tbl.RightAlign(0)

	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, tbl)
}

func printModel(w io.Writer, a model.Artifact) {
	bold := color.New(color.Bold)

	_, _ = bold.Fprintf(w, "%s %s\n", a.Name, a.Version)
	_, _ = fmt.Fprintf(w, "output %s (%s), format %d\n\n", a.Output, orDefault(a.Unit, "seconds"), a.FormatVersion)

	names := make([]string, 0, len(a.Coefficients))
	for name := range a.Coefficients {
		names = append(names, name)
	}
	sort.Strings(names)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("Term"), bold.Sprint("Coefficient"))
	tbl.AddRow("intercept", fmt.Sprintf("%g", a.Intercept))
	for _, name := range names {
		tbl.AddRow(name, fmt.Sprintf("%g", a.Coefficients[name]))
	}
	_, _ = fmt.Fprintln(w, tbl)
}

func writeJSONTo(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtHM(d time.Duration) string {
	mins := int(math.Round(math.Abs(d.Minutes())))
	return fmt.Sprintf("%dh%02dm", mins/60, mins%60)
}

func orDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}

func printListenAddrs(w io.Writer, port int) {
	fmt.Fprintln(w, "Listening on:")
	fmt.Fprintf(w, "  http://127.0.0.1:%d/\n", port)

	ifaces, _ := net.Interfaces()
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			ip, _, err := net.ParseCIDR(a.String())
			if err != nil || ip == nil || ip.IsLoopback() || ip.To4() == nil {
				continue
			}
			fmt.Fprintf(w, "  http://%s:%d/\n", ip.String(), port)
		}
	}
	fmt.Fprintln(w)
}
