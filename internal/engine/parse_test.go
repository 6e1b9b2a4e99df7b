package engine

import "testing"

func TestParseLocalCopyLine_ToCheckPercent(t *testing.T) {
	u := parseLocalCopyLine("          1,048,576  50%   10.00MB/s    0:00:02 (xfr#1, to-check=45/90)", 0)
	if !u.hasPercent || u.percent != 50 {
		t.Fatalf("expected 50%%, got hasPercent=%v percent=%d", u.hasPercent, u.percent)
	}
	if !u.hasBytes || u.bytes != 1048576 {
		t.Fatalf("expected bytes=1048576, got hasBytes=%v bytes=%d", u.hasBytes, u.bytes)
	}
	if !u.hasSpeed || u.speed != int64(10*1024*1024) {
		t.Fatalf("expected speed=10MiB/s, got hasSpeed=%v speed=%d", u.hasSpeed, u.speed)
	}
	if !u.hasETA || u.eta != 2 {
		t.Fatalf("expected eta=2s, got hasETA=%v eta=%d", u.hasETA, u.eta)
	}
}

func TestParseLocalCopyLine_RecomputesTotalOnLargeDelta(t *testing.T) {
	// bytes=500000, percent=50 implies a total of 1,000,000 bytes; with a
	// currentTotal far off from that, the line should recompute it.
	u := parseLocalCopyLine("          500,000  50%    1.00MB/s    0:00:01 (xfr#1, to-check=1/2)", 10)
	if !u.hasTotal || u.total != 1000000 {
		t.Fatalf("expected recomputed total=1000000, got hasTotal=%v total=%d", u.hasTotal, u.total)
	}
}

func TestParseLocalCopyLine_SkipsTotalRecomputeWithinTolerance(t *testing.T) {
	u := parseLocalCopyLine("          500,000  50%    1.00MB/s    0:00:01 (xfr#1, to-check=1/2)", 1000000)
	if u.hasTotal {
		t.Fatalf("expected no recompute within 10%% tolerance, got total=%d", u.total)
	}
}

func TestParseLocalCopyLine_IgnoresUnrelatedText(t *testing.T) {
	u := parseLocalCopyLine("sending incremental file list", 0)
	if u.hasPercent || u.hasBytes || u.hasSpeed || u.hasETA {
		t.Fatalf("expected no fields populated, got %+v", u)
	}
}

func TestParseCloudCopyLine_TransferredStatsLine(t *testing.T) {
	u := parseCloudCopyLine("Transferred:   \t  512.500 MiB / 1.000 GiB, 50%, 25.000 MiB/s, ETA 20s")
	if !u.hasPercent || u.percent != 50 {
		t.Fatalf("expected 50%%, got %+v", u)
	}
	if !u.hasBytes || u.bytes != int64(512.5*1024*1024) {
		t.Fatalf("unexpected bytes: %+v", u)
	}
	if !u.hasTotal || u.total != int64(1024*1024*1024) {
		t.Fatalf("unexpected total: %+v", u)
	}
	if !u.hasSpeed || u.speed != int64(25*1024*1024) {
		t.Fatalf("unexpected speed: %+v", u)
	}
	if !u.hasETA || u.eta != 20 {
		t.Fatalf("unexpected eta: %+v", u)
	}
}

func TestParseCloudCopyLine_DecimalVsBinaryUnits(t *testing.T) {
	u := parseCloudCopyLine("Transferred:   \t  1.000 MB / 2.000 GB, 50%, 1.000 KB/s, ETA 1h2m3s")
	if u.bytes != 1000*1000 {
		t.Fatalf("expected decimal MB, got %d", u.bytes)
	}
	if u.total != 2000*1000*1000 {
		t.Fatalf("expected decimal GB, got %d", u.total)
	}
	if u.eta != 3723 {
		t.Fatalf("expected eta=1h2m3s=3723s, got %d", u.eta)
	}
}

func TestParseCloudCopyLine_IgnoresLinesWithoutTransferred(t *testing.T) {
	u := parseCloudCopyLine("2024/01/01 00:00:00 NOTICE: some other rclone log line")
	if u.hasPercent || u.hasBytes || u.hasTotal || u.hasSpeed || u.hasETA {
		t.Fatalf("expected no fields populated, got %+v", u)
	}
}

func TestHasTransientPattern(t *testing.T) {
	if !hasTransientPattern("rsync: connection refused (111)") {
		t.Fatalf("expected connection refused to match a transient pattern")
	}
	if hasTransientPattern("rsync: permission denied") {
		t.Fatalf("expected permission denied to not match a transient pattern")
	}
}
