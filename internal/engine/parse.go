package engine

import (
	"regexp"
	"strconv"
	"strings"
)

// transientPatterns is the tail-output pattern list LocalCopy uses to
// disambiguate rsync's ambiguous exit code (spec §4.1, §9 — kept as data
// rather than scattered literals). CloudCopy scans its own list,
// cloudTransientPatterns in cloudcopy.go.
var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"connection timed out",
	"timed out",
	"connection closed",
	"connection unexpectedly closed",
	"network is unreachable",
	"no route to host",
	"temporary failure",
	"timeout",
	"broken pipe",
	"too many open files",
}

// hasTransientPattern scans text (already lowercased by the caller) for any
// of the shared transient substrings.
func hasTransientPattern(text string) bool {
	for _, p := range transientPatterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// --- LocalCopy (rsync-style) parsing ---

var (
	localToCheckRe = regexp.MustCompile(`to-ch(?:ec)?k=(\d+)/(\d+)`)
	localBytesRe   = regexp.MustCompile(`[\s,]+([\d,]+)[\s,]+(\d+)%`)
	localSpeedRe   = regexp.MustCompile(`(?i)([\d.]+)(MB|KB|GB)/s`)
	localETARe     = regexp.MustCompile(`(\d+):(\d+):(\d+)`)
)

var localSpeedMultiplier = map[string]int64{
	"KB": 1024,
	"MB": 1024 * 1024,
	"GB": 1024 * 1024 * 1024,
}

// localCopyUpdate carries the fields a single parsed chunk could extract;
// zero-value fields mean "not present in this chunk" (the caller merges by
// presence flag, not by zero-check, since 0 is a legitimate value).
type localCopyUpdate struct {
	hasPercent bool
	percent    int
	hasBytes   bool
	bytes      int64
	hasTotal   bool
	total      int64
	hasSpeed   bool
	speed      int64
	hasETA     bool
	eta        int64
}

// parseLocalCopyLine parses one rsync --progress chunk (a line or a
// carriage-return-delimited fragment). Partial or unreadable fragments
// simply yield fewer populated fields; they never clear existing state
// (the caller is responsible for only merging present fields).
func parseLocalCopyLine(line string, currentTotal int64) localCopyUpdate {
	var u localCopyUpdate

	if m := localToCheckRe.FindStringSubmatch(line); m != nil {
		remaining, err1 := strconv.ParseInt(m[1], 10, 64)
		total, err2 := strconv.ParseInt(m[2], 10, 64)
		if err1 == nil && err2 == nil && total > 0 {
			completed := total - remaining
			u.hasPercent = true
			u.percent = int(completed * 100 / total)
		}
	}

	if m := localBytesRe.FindStringSubmatch(line); m != nil {
		raw := strings.ReplaceAll(m[1], ",", "")
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			u.hasBytes = true
			u.bytes = n
		}
		if !u.hasPercent {
			if p, err := strconv.Atoi(m[2]); err == nil {
				u.hasPercent = true
				u.percent = p
			}
		}
	}

	if u.hasBytes && u.hasPercent && u.percent > 0 {
		calculated := u.bytes * 100 / int64(u.percent)
		if currentTotal == 0 || abs64(calculated-currentTotal) > currentTotal/10 {
			u.hasTotal = true
			u.total = calculated
		}
	}

	if m := localSpeedRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			mult := localSpeedMultiplier[strings.ToUpper(m[2])]
			u.hasSpeed = true
			u.speed = int64(v * float64(mult))
		}
	}

	if m := localETARe.FindStringSubmatch(line); m != nil {
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		s, _ := strconv.Atoi(m[3])
		u.hasETA = true
		u.eta = int64(h*3600 + mi*60 + s)
	}

	return u
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// --- CloudCopy (rclone-style) parsing ---

var (
	cloudTransferredRe = regexp.MustCompile(`Transferred:\s*([\d.]+)\s*(\w+)\s*/\s*([\d.]+)\s*(\w+),\s*(\d+)%`)
	cloudSpeedRe       = regexp.MustCompile(`([\d.]+)\s*(\w+)/s`)
	cloudETARe         = regexp.MustCompile(`ETA\s+(\d+h)?(\d+m)?(\d+s)?`)
)

var sizeMultiplier = map[string]float64{
	"B":   1,
	"KIB": 1024,
	"MIB": 1024 * 1024,
	"GIB": 1024 * 1024 * 1024,
	"TIB": 1024 * 1024 * 1024 * 1024,
	"KB":  1000,
	"MB":  1000 * 1000,
	"GB":  1000 * 1000 * 1000,
	"TB":  1000 * 1000 * 1000 * 1000,
}

type cloudCopyUpdate struct {
	hasPercent bool
	percent    int
	hasBytes   bool
	bytes      int64
	hasTotal   bool
	total      int64
	hasSpeed   bool
	speed      int64
	hasETA     bool
	eta        int64
}

// parseSize converts a "1.234 MiB"-shaped string to bytes, distinguishing
// binary (KiB/MiB/GiB/TiB) from decimal (KB/MB/GB/TB) scales.
func parseSize(value float64, unit string) int64 {
	mult, ok := sizeMultiplier[strings.ToUpper(unit)]
	if !ok {
		mult = 1
	}
	return int64(value * mult)
}

// parseCloudCopyLine parses one rclone --stats-one-line "Transferred:" line.
func parseCloudCopyLine(line string) cloudCopyUpdate {
	var u cloudCopyUpdate
	if !strings.Contains(line, "Transferred:") {
		return u
	}

	if m := cloudTransferredRe.FindStringSubmatch(line); m != nil {
		transferredVal, err1 := strconv.ParseFloat(m[1], 64)
		totalVal, err2 := strconv.ParseFloat(m[3], 64)
		percent, err3 := strconv.Atoi(m[5])
		if err1 == nil && err2 == nil && err3 == nil {
			u.hasBytes = true
			u.bytes = parseSize(transferredVal, m[2])
			u.hasTotal = true
			u.total = parseSize(totalVal, m[4])
			u.hasPercent = true
			u.percent = percent
		}
	}

	if m := cloudSpeedRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			u.hasSpeed = true
			u.speed = parseSize(v, m[2])
		}
	}

	if m := cloudETARe.FindStringSubmatch(line); m != nil && (m[1] != "" || m[2] != "" || m[3] != "") {
		h := parseDurationPart(m[1])
		mi := parseDurationPart(m[2])
		s := parseDurationPart(m[3])
		u.hasETA = true
		u.eta = int64(h*3600 + mi*60 + s)
	}

	return u
}

func parseDurationPart(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0
	}
	return n
}
