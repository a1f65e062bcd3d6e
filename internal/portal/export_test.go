package portal

import (
	"strings"
	"testing"
	"time"
)

func TestReportDate(t *testing.T) {
	tests := []struct {
		now  time.Time
		want string
	}{
		{time.Date(2024, 3, 15, 10, 0, 0, 0, time.Local), "14/03/2024"},
		{time.Date(2024, 3, 1, 0, 5, 0, 0, time.Local), "29/02/2024"},
		{time.Date(2025, 1, 1, 23, 59, 0, 0, time.Local), "31/12/2024"},
	}
	for _, tt := range tests {
		if got := ReportDate(tt.now); got != tt.want {
			t.Errorf("ReportDate(%v) = %q; want %q", tt.now, got, tt.want)
		}
	}
}

func TestExportURL(t *testing.T) {
	got := ExportURL("https://www.dennisconnect.co.uk/", "14/03/2024", Resolution{DisplayName: "ABC123", InternalID: "98765"})
	want := "https://www.dennisconnect.co.uk/_handler/csv.ashx?req=HISTORY_LIST" +
		"&sdate=14/03/2024%2000:00&edate=14/03/2024%2023:59" +
		"&atype=V&aid=98765&aname=ABC123" +
		"&locfil=&useshape=false&dtl=0&s2r=false&showdriverbehavioralalerts=false"
	if got != want {
		t.Fatalf("ExportURL() =\n%s\nwant\n%s", got, want)
	}
}

func TestExportURLEscapesDisplayName(t *testing.T) {
	got := ExportURL("https://portal.example", "14/03/2024", Resolution{DisplayName: "AB12 CDE&X", InternalID: "1"})
	if !strings.Contains(got, "&aname=AB12%20CDE%26X&") {
		t.Fatalf("ExportURL() = %q; want escaped aname", got)
	}
}

func TestExportURLInjective(t *testing.T) {
	pairs := []Resolution{
		{DisplayName: "ABC123", InternalID: "1"},
		{DisplayName: "ABC123", InternalID: "2"},
		{DisplayName: "GHI789", InternalID: "1"},
		{DisplayName: "GHI789", InternalID: "3"},
	}
	seen := make(map[string]Resolution)
	for _, p := range pairs {
		u := ExportURL("https://portal.example", "14/03/2024", p)
		if prev, ok := seen[u]; ok {
			t.Fatalf("ExportURL(%+v) collides with %+v: %s", p, prev, u)
		}
		seen[u] = p

		prefix, suffix := "https://portal.example/_handler/csv.ashx?req=HISTORY_LIST&sdate=14/03/2024%2000:00&edate=14/03/2024%2023:59&atype=V&aid=",
			"&locfil=&useshape=false&dtl=0&s2r=false&showdriverbehavioralalerts=false"
		if !strings.HasPrefix(u, prefix) || !strings.HasSuffix(u, suffix) {
			t.Fatalf("ExportURL(%+v) = %q; fixed parts changed", p, u)
		}
	}
}

func TestCodeOf(t *testing.T) {
	err := NewError(CodeElementNotFound, "vehicle option missing", nil)
	if got, want := CodeOf(err), CodeElementNotFound; got != want {
		t.Fatalf("CodeOf() = %q; want %q", got, want)
	}
	if got := CodeOf(nil); got != "" {
		t.Fatalf("CodeOf(nil) = %q; want empty", got)
	}
}
