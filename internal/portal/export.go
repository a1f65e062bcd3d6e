package portal

import (
	"net/url"
	"strings"
	"time"
)

// reportDateLayout is DD/MM/YYYY.
const reportDateLayout = "02/01/2006"

// ReportDate returns the day before now, in now's location, as DD/MM/YYYY.
func ReportDate(now time.Time) string {
	return now.AddDate(0, 0, -1).Format(reportDateLayout)
}

// ExportURL builds the history CSV handler URL for a single day. Only the
// dates and the two vehicle fields vary; the rest of the query is fixed.
func ExportURL(baseURL, date string, res Resolution) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(baseURL, "/"))
	b.WriteString("/_handler/csv.ashx?req=HISTORY_LIST")
	b.WriteString("&sdate=" + date + "%2000:00")
	b.WriteString("&edate=" + date + "%2023:59")
	b.WriteString("&atype=V")
	b.WriteString("&aid=" + escapeQueryValue(res.InternalID))
	b.WriteString("&aname=" + escapeQueryValue(res.DisplayName))
	b.WriteString("&locfil=&useshape=false&dtl=0&s2r=false&showdriverbehavioralalerts=false")
	return b.String()
}

// escapeQueryValue escapes a query value with spaces as %20, matching how
// the browser would send a registration such as "AB12 CDE".
func escapeQueryValue(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}
