// Package spec parses the compact port specification grammar used by the
// fwctl CLI: PORT['-'PORT]['/'TOKEN]['/'TOKEN], where TOKEN restricts the
// protocol (tcp, udp) or the address family (4, 6). Unrestricted specs
// expand to both protocols and both families.
package spec

import (
	"fmt"
	"strconv"
	"strings"
)

// Protocol is a transport protocol a spec applies to.
type Protocol string

// Protocols recognized in spec tokens, in canonical fan-out order.
const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// Family is an address family (packet filter stack) a spec applies to.
type Family string

// Families recognized in spec tokens, in canonical fan-out order.
const (
	FamilyIPv4 Family = "v4"
	FamilyIPv6 Family = "v6"
)

// PortSpec is a normalized port specification: an inclusive port range
// plus the protocol and family sets it applies to. Start == End denotes
// a single port. Protocols and Families are never empty and keep the
// canonical order (tcp before udp, v4 before v6).
type PortSpec struct {
	Start     uint16
	End       uint16
	Protocols []Protocol
	Families  []Family
}

// SinglePort reports whether the spec covers exactly one port.
func (s PortSpec) SinglePort() bool {
	return s.Start == s.End
}

// String renders the spec in its canonical grammar form.
func (s PortSpec) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", s.Start)
	if s.End != s.Start {
		fmt.Fprintf(&b, "-%d", s.End)
	}
	if len(s.Protocols) == 1 {
		fmt.Fprintf(&b, "/%s", s.Protocols[0])
	}
	if len(s.Families) == 1 {
		switch s.Families[0] {
		case FamilyIPv4:
			b.WriteString("/4")
		case FamilyIPv6:
			b.WriteString("/6")
		}
	}
	return b.String()
}

// HopRule describes a NAT port redirection: inbound traffic matching From
// on interface Iface has its destination port rewritten to ToPort.
// An empty Iface means "resolve at execution time".
type HopRule struct {
	ToPort uint16
	From   PortSpec
	Iface  string
}

// Parse turns a raw spec string into a PortSpec. Validation order is
// stable so error messages are deterministic: empty check, numeric port
// syntax, port range bounds, range ordering, then token semantics. Every
// error quotes the raw spec verbatim so callers can show the user exactly
// which input failed.
func Parse(raw string) (PortSpec, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return PortSpec{}, fmt.Errorf("spec: empty port spec %q", raw)
	}

	parts := strings.Split(trimmed, "/")
	start, end, err := parsePortRange(parts[0], raw)
	if err != nil {
		return PortSpec{}, err
	}

	ps := PortSpec{Start: start, End: end}
	for _, tok := range parts[1:] {
		switch tok {
		case "tcp", "udp":
			if ps.Protocols != nil {
				return PortSpec{}, fmt.Errorf("spec: %q: more than one protocol token", raw)
			}
			ps.Protocols = []Protocol{Protocol(tok)}
		case "4":
			if ps.Families != nil {
				return PortSpec{}, fmt.Errorf("spec: %q: more than one family token", raw)
			}
			ps.Families = []Family{FamilyIPv4}
		case "6":
			if ps.Families != nil {
				return PortSpec{}, fmt.Errorf("spec: %q: more than one family token", raw)
			}
			ps.Families = []Family{FamilyIPv6}
		default:
			return PortSpec{}, fmt.Errorf("spec: %q: unknown token %q", raw, tok)
		}
	}

	if ps.Protocols == nil {
		ps.Protocols = []Protocol{ProtocolTCP, ProtocolUDP}
	}
	if ps.Families == nil {
		ps.Families = []Family{FamilyIPv4, FamilyIPv6}
	}
	return ps, nil
}

// ParseHop builds a HopRule from a raw destination port and a raw source
// spec. The destination port gets the same numeric and range validation
// as spec ports. The interface field is left empty for the caller to
// resolve.
func ParseHop(toPort, from string) (HopRule, error) {
	port, err := parsePort(strings.TrimSpace(toPort), toPort)
	if err != nil {
		return HopRule{}, err
	}
	ps, err := Parse(from)
	if err != nil {
		return HopRule{}, err
	}
	return HopRule{ToPort: port, From: ps}, nil
}

// SplitList splits an interactively entered line into individual raw
// specs. Commas and any whitespace both act as separators; empty fields
// are dropped.
func SplitList(line string) []string {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// parsePortRange parses "N" or "N-M" and validates bounds and ordering.
// raw is the full original spec, used verbatim in errors.
func parsePortRange(field, raw string) (uint16, uint16, error) {
	lo, hi, ranged := strings.Cut(field, "-")
	start, err := parsePort(lo, raw)
	if err != nil {
		return 0, 0, err
	}
	if !ranged {
		return start, start, nil
	}
	end, err := parsePort(hi, raw)
	if err != nil {
		return 0, 0, err
	}
	if start > end {
		return 0, 0, fmt.Errorf("spec: %q: range start %d exceeds end %d", raw, start, end)
	}
	return start, end, nil
}

// parsePort parses a single port number in [1,65535]. raw is quoted
// verbatim in errors.
func parsePort(field, raw string) (uint16, error) {
	n, err := strconv.ParseUint(field, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("spec: %q: invalid port %q", raw, field)
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("spec: %q: port %d out of range 1-65535", raw, n)
	}
	return uint16(n), nil
}
