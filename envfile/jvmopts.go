package envfile

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tcserver/tcconfig/diag"
	"github.com/tcserver/tcconfig/settings"
)

const (
	kib = 1024
	mib = 1024 * kib
)

var collectorFlags = map[string]string{
	settings.CollectorSerial:   "-XX:+UseSerialGC",
	settings.CollectorParallel: "-XX:+UseParallelGC",
	settings.CollectorCMS:      "-XX:+UseConcMarkSweepGC",
	settings.CollectorG1:       "-XX:+UseG1GC",
}

// debugFlag binds a boolean switch to its field.
type debugFlag struct {
	flag  string
	field func(*settings.DebugFlags) *bool
}

var debugFlags = []debugFlag{
	{"-XX:+HeapDumpOnOutOfMemoryError", func(d *settings.DebugFlags) *bool { return &d.HeapDumpOnOutOfMemory }},
	{"-XX:+PrintGC", func(d *settings.DebugFlags) *bool { return &d.PrintGC }},
	{"-XX:+PrintGCDetails", func(d *settings.DebugFlags) *bool { return &d.PrintGCDetails }},
	{"-XX:+PrintGCTimeStamps", func(d *settings.DebugFlags) *bool { return &d.PrintGCTimeStamps }},
	{"-verbose:gc", func(d *settings.DebugFlags) *bool { return &d.VerboseGC }},
}

// numericFlag binds a -XX:Name=value option to its field.
type numericFlag struct {
	prefix string
	unit   int64 // 0 for plain numbers, else bytes per model unit
	field  func(*settings.JvmOptions) *int
}

var numericFlags = []numericFlag{
	{"-XX:NewRatio=", 0, func(o *settings.JvmOptions) *int { return &o.GC.NewRatio }},
	{"-XX:SurvivorRatio=", 0, func(o *settings.JvmOptions) *int { return &o.GC.SurvivorRatio }},
	{"-XX:ParallelGCThreads=", 0, func(o *settings.JvmOptions) *int { return &o.GC.ParallelGCThreads }},
	{"-XX:MaxGCPauseMillis=", 0, func(o *settings.JvmOptions) *int { return &o.GC.MaxGCPauseMillis }},
	{"-Xms", mib, func(o *settings.JvmOptions) *int { return &o.Memory.InitialHeap }},
	{"-Xmx", mib, func(o *settings.JvmOptions) *int { return &o.Memory.MaxHeap }},
	{"-Xss", kib, func(o *settings.JvmOptions) *int { return &o.Memory.ThreadStack }},
	{"-XX:NewSize=", mib, func(o *settings.JvmOptions) *int { return &o.Memory.NewSize }},
	{"-XX:MaxNewSize=", mib, func(o *settings.JvmOptions) *int { return &o.Memory.MaxNewSize }},
	{"-XX:MaxMetaspaceSize=", mib, func(o *settings.JvmOptions) *int { return &o.Memory.MaxMetaspace }},
}

var errInexact = errors.New("not a whole number of units")

// parseSize reads a JVM size (bytes, or with a k/m/g suffix) and converts
// it to unit-sized units.
func parseSize(s string, unit int64) (int, error) {
	mult := int64(1)
	if n := len(s); n > 0 {
		switch s[n-1] {
		case 'k', 'K':
			mult, s = kib, s[:n-1]
		case 'm', 'M':
			mult, s = mib, s[:n-1]
		case 'g', 'G':
			mult, s = 1024*mib, s[:n-1]
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt64/mult || v < math.MinInt64/mult {
		return 0, &strconv.NumError{Func: "parseSize", Num: s, Err: strconv.ErrRange}
	}
	bytes := v * mult
	if bytes%unit != 0 {
		return 0, errInexact
	}
	n := bytes / unit
	if n > math.MaxInt || n < math.MinInt {
		return 0, &strconv.NumError{Func: "parseSize", Num: s, Err: strconv.ErrRange}
	}
	return int(n), nil
}

// DecodeJvmOptions maps an ordered flag list onto the structured model.
// Unrecognized flags are kept, in order, in Advanced. A recognized flag
// whose number does not parse is reported to w and dropped.
func DecodeJvmOptions(flags []string, w *diag.Warnings) settings.JvmOptions {
	var o settings.JvmOptions
	var advanced []string

next:
	for _, f := range flags {
		if f == "-server" {
			o.Server = true
			continue
		}
		for _, d := range debugFlags {
			if f == d.flag {
				*d.field(&o.Debug) = true
				continue next
			}
		}
		for name, flag := range collectorFlags {
			if f == flag {
				o.GC.Collector = name
				continue next
			}
		}
		for _, nf := range numericFlags {
			raw, ok := strings.CutPrefix(f, nf.prefix)
			if !ok {
				continue
			}
			var (
				v   int
				err error
			)
			if nf.unit == 0 {
				v, err = strconv.Atoi(raw)
			} else {
				v, err = parseSize(raw, nf.unit)
			}
			switch {
			case errors.Is(err, errInexact):
				// Representable only verbatim.
				advanced = append(advanced, f)
			case err != nil:
				w.NumericFormat("jvm option "+strings.TrimSuffix(nf.prefix, "="), raw, err)
			default:
				*nf.field(&o) = v
			}
			continue next
		}
		advanced = append(advanced, quoteIfSpaced(f))
	}
	o.Advanced = strings.Join(advanced, " ")
	return o
}

// quoteIfSpaced quotes a flag that SplitQuoted would otherwise break apart.
func quoteIfSpaced(f string) string {
	if len(SplitQuoted(f)) <= 1 {
		return f
	}
	if strings.Contains(f, `"`) {
		return "'" + f + "'"
	}
	return `"` + f + `"`
}

// EncodeJvmOptions renders the model as flags: general, debug, GC, memory,
// then the advanced tokens.
func EncodeJvmOptions(o settings.JvmOptions) []string {
	var out []string
	if o.Server {
		out = append(out, "-server")
	}
	for _, d := range debugFlags {
		if *d.field(&o.Debug) {
			out = append(out, d.flag)
		}
	}
	if flag, ok := collectorFlags[o.GC.Collector]; ok {
		out = append(out, flag)
	}
	for _, nf := range numericFlags {
		v := *nf.field(&o)
		if v == 0 {
			continue
		}
		switch nf.unit {
		case 0:
			out = append(out, nf.prefix+strconv.Itoa(v))
		case kib:
			out = append(out, fmt.Sprintf("%s%dk", nf.prefix, v))
		default:
			out = append(out, fmt.Sprintf("%s%dm", nf.prefix, v))
		}
	}
	for _, tok := range SplitQuoted(o.Advanced) {
		out = append(out, unquote(tok))
	}
	return out
}

// OptionName is the identity used to deduplicate flags: the system property
// of -D, the option of -XX, the -Xms/-Xmx/-Xss/-Xmn prefix, otherwise the
// flag up to its first '=' or ':'.
func OptionName(flag string) string {
	switch {
	case strings.HasPrefix(flag, "-XX:"):
		n := strings.TrimLeft(flag[len("-XX:"):], "+-")
		if i := strings.IndexByte(n, '='); i >= 0 {
			n = n[:i]
		}
		return "-XX:" + n
	case strings.HasPrefix(flag, "-D"):
		if i := strings.IndexByte(flag, '='); i >= 0 {
			return flag[:i]
		}
		return flag
	}
	for _, p := range []string{"-Xms", "-Xmx", "-Xss", "-Xmn"} {
		if strings.HasPrefix(flag, p) {
			return p
		}
	}
	if i := strings.IndexAny(flag, "=:"); i >= 0 {
		return flag[:i]
	}
	return flag
}
