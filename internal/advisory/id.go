package advisory

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IDKind is the namespace an advisory identifier belongs to.
type IDKind int

const (
	IDKindOther IDKind = iota
	IDKindRustsec
	IDKindCVE
	IDKindGHSA
)

func (k IDKind) String() string {
	switch k {
	case IDKindRustsec:
		return "RUSTSEC"
	case IDKindCVE:
		return "CVE"
	case IDKindGHSA:
		return "GHSA"
	}
	return "other"
}

// ID is an advisory identifier, e.g. RUSTSEC-2017-0004. Aliases in other
// namespaces (CVE-..., GHSA-...) use the same type.
type ID string

func (id ID) String() string {
	return string(id)
}

func (id ID) Kind() IDKind {
	switch {
	case strings.HasPrefix(string(id), "RUSTSEC-"):
		return IDKindRustsec
	case strings.HasPrefix(string(id), "CVE-"):
		return IDKindCVE
	case strings.HasPrefix(string(id), "GHSA-"):
		return IDKindGHSA
	}
	return IDKindOther
}

// Year parses the year component of a RUSTSEC identifier. The second return
// is false for other namespaces and malformed identifiers.
func (id ID) Year() (int, bool) {
	if id.Kind() != IDKindRustsec {
		return 0, false
	}
	parts := strings.SplitN(string(id), "-", 3)
	if len(parts) != 3 {
		return 0, false
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return year, true
}

const dateLayout = "2006-01-02"

// Date is an advisory date, YYYY-MM-DD in the TOML front matter.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalText(b []byte) error {
	t, err := time.Parse(dateLayout, string(b))
	if err != nil {
		return fmt.Errorf("invalid advisory date %q: expected YYYY-MM-DD", b)
	}
	d.Time = t
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
