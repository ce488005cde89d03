// SPDX-License-Identifier: GPL-3.0-or-later

package zoneminder

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// 1.30 footer: "Load: 0.12 - Disk: 40% - /dev/shm: 5%"
	reConsole130 = regexp.MustCompile(`Load.?\s+\d+\.\d+.*Disk.?\s+(\d+)%?.*/\w+/shm.?\s(\d+)%?`)
	// 1.32 navbar: "Storage: <span>40%</span> ... /dev/shm: 5%"
	reConsole132 = regexp.MustCompile(`Storage.?\s+(\d+)%?<?/?[span]*>?.*/\w+/shm.?\s+(\d+)%?`)
	reStorage    = regexp.MustCompile(`Storage.?\s+(\d+)%?`)
	reShm        = regexp.MustCompile(`/\w+/shm.?\s+(\d+)%?`)

	reBandwidth = regexp.MustCompile(`<td class="colFunction">(\S+)B/s`)

	reOnlineStatus = regexp.MustCompile(`<td class="colSource">.*<span class="(\w+)Text">`)
)

type storageStats struct {
	disk   string
	devshm string
}

// A consoleExtractor returns ok=false when its layout is not recognized.
type consoleExtractor func(page string) (storageStats, bool)

var consoleExtractors = []consoleExtractor{
	pairExtractor(reConsole130),
	pairExtractor(reConsole132),
	splitExtractor,
}

func pairExtractor(re *regexp.Regexp) consoleExtractor {
	return func(page string) (storageStats, bool) {
		m := re.FindStringSubmatch(page)
		if m == nil {
			return storageStats{}, false
		}
		return storageStats{disk: m[1], devshm: m[2]}, true
	}
}

func splitExtractor(page string) (storageStats, bool) {
	var st storageStats
	if m := reStorage.FindStringSubmatch(page); m != nil {
		st.disk = m[1]
	}
	if m := reShm.FindStringSubmatch(page); m != nil {
		st.devshm = m[1]
	}
	return st, true
}

func scrapeStorage(page string) storageStats {
	for _, extract := range consoleExtractors {
		if st, ok := extract(page); ok {
			return st
		}
	}
	return storageStats{}
}

func scrapeBandwidth(page string) (float64, bool, error) {
	m := reBandwidth.FindStringSubmatch(page)
	if m == nil {
		return 0, false, nil
	}
	v, err := parseBandwidth(m[1])
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

var bandwidthUnits = map[byte]float64{
	'K': 1e3,
	'M': 1e6,
	'G': 1e9,
}

func parseBandwidth(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("empty bandwidth value")
	}

	last := s[len(s)-1]
	if last >= '0' && last <= '9' {
		return strconv.ParseFloat(s, 64)
	}

	v, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("parse bandwidth '%s': %v", s, err)
	}
	mul, ok := bandwidthUnits[last]
	if !ok {
		mul = 1
	}
	return v * mul, nil
}

// OnlineMarker locates a monitor row on the console page: the anchor line contains Prefix+monitorID,
// the status cell is Offset lines below it.
type OnlineMarker struct {
	Prefix string `yaml:"prefix" json:"prefix"`
	Offset int    `yaml:"offset" json:"offset"`
}

var defaultOnlineMarkers = []OnlineMarker{
	{Prefix: "zmWatch", Offset: 2},     // 1.30
	{Prefix: "zmMonitor", Offset: 0},   // 1.34
	{Prefix: "monitor_id-", Offset: 9}, // 1.32
}

const (
	onlineError   = 0
	onlineInfo    = 1
	onlineUnknown = 2
)

var (
	errOnlineMarkerNotFound = errors.New("monitor marker not found on console page")
	errOnlineStatusNotFound = errors.New("monitor status not found on console page")
)

func scrapeOnline(page, monitorID string, markers []OnlineMarker) (int, error) {
	var marker *OnlineMarker
	for i := range markers {
		if markers[i].Prefix != "" && strings.Contains(page, markers[i].Prefix) {
			marker = &markers[i]
			break
		}
	}
	if marker == nil {
		return 0, errOnlineMarkerNotFound
	}

	anchor := marker.Prefix + monitorID
	lines := strings.Split(page, "\n")

	idx := -1
	for i, line := range lines {
		if strings.Contains(line, anchor) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return 0, fmt.Errorf("%w: '%s'", errOnlineMarkerNotFound, anchor)
	}

	idx += marker.Offset
	if idx < 0 || idx >= len(lines) {
		return 0, fmt.Errorf("%w: line %d is out of range", errOnlineStatusNotFound, idx)
	}

	m := reOnlineStatus.FindStringSubmatch(lines[idx])
	if m == nil {
		return 0, errOnlineStatusNotFound
	}

	switch m[1] {
	case "error":
		return onlineError, nil
	case "info":
		return onlineInfo, nil
	default:
		return onlineUnknown, nil
	}
}
