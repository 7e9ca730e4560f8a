package spec

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseDefaultsToAllProtocolsAndFamilies(t *testing.T) {
	ps, err := Parse("80")
	if err != nil {
		t.Fatalf("Parse(80) returned error: %v", err)
	}
	want := PortSpec{
		Start:     80,
		End:       80,
		Protocols: []Protocol{ProtocolTCP, ProtocolUDP},
		Families:  []Family{FamilyIPv4, FamilyIPv6},
	}
	if !reflect.DeepEqual(ps, want) {
		t.Errorf("Parse(80) = %+v, want %+v", ps, want)
	}
}

func TestParseRange(t *testing.T) {
	ps, err := Parse("50-100")
	if err != nil {
		t.Fatalf("Parse(50-100) returned error: %v", err)
	}
	if ps.Start != 50 || ps.End != 100 {
		t.Errorf("Parse(50-100) = [%d,%d], want [50,100]", ps.Start, ps.End)
	}
	if ps.SinglePort() {
		t.Error("SinglePort() = true for a range")
	}
}

func TestParseTokens(t *testing.T) {
	tests := []struct {
		raw       string
		protocols []Protocol
		families  []Family
	}{
		{"80/tcp", []Protocol{ProtocolTCP}, []Family{FamilyIPv4, FamilyIPv6}},
		{"80/udp", []Protocol{ProtocolUDP}, []Family{FamilyIPv4, FamilyIPv6}},
		{"80/4", []Protocol{ProtocolTCP, ProtocolUDP}, []Family{FamilyIPv4}},
		{"80/6", []Protocol{ProtocolTCP, ProtocolUDP}, []Family{FamilyIPv6}},
		{"80/tcp/4", []Protocol{ProtocolTCP}, []Family{FamilyIPv4}},
		{"80/4/tcp", []Protocol{ProtocolTCP}, []Family{FamilyIPv4}},
		{"9100-9199/udp/6", []Protocol{ProtocolUDP}, []Family{FamilyIPv6}},
	}
	for _, tt := range tests {
		ps, err := Parse(tt.raw)
		if err != nil {
			t.Errorf("Parse(%q) returned error: %v", tt.raw, err)
			continue
		}
		if !reflect.DeepEqual(ps.Protocols, tt.protocols) {
			t.Errorf("Parse(%q).Protocols = %v, want %v", tt.raw, ps.Protocols, tt.protocols)
		}
		if !reflect.DeepEqual(ps.Families, tt.families) {
			t.Errorf("Parse(%q).Families = %v, want %v", tt.raw, ps.Families, tt.families)
		}
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	invalid := []string{
		"",
		"   ",
		"abc",
		"80x",
		"0",
		"65536",
		"100-50",
		"1-65536",
		"80/tcp/udp",
		"80/udp/tcp",
		"80/4/6",
		"80/6/4",
		"80/icmp",
		"80/tcp/tcp",
		"80/",
		"-80",
		"80-",
	}
	for _, raw := range invalid {
		if _, err := Parse(raw); err == nil {
			t.Errorf("Parse(%q) accepted invalid spec", raw)
		}
	}
}

func TestParseErrorQuotesRawSpec(t *testing.T) {
	for _, raw := range []string{"80/tcp/udp", "100-50", "  9999999  ", "x/tcp"} {
		_, err := Parse(raw)
		if err == nil {
			t.Fatalf("Parse(%q) unexpectedly succeeded", raw)
		}
		if !strings.Contains(err.Error(), raw) {
			t.Errorf("Parse(%q) error %q does not quote the raw spec", raw, err)
		}
	}
}

func TestParseTrimsWhitespace(t *testing.T) {
	ps, err := Parse("  443/tcp  ")
	if err != nil {
		t.Fatalf("Parse with surrounding whitespace returned error: %v", err)
	}
	if ps.Start != 443 || ps.End != 443 {
		t.Errorf("got [%d,%d], want [443,443]", ps.Start, ps.End)
	}
}

func TestPortSpecString(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"80", "80"},
		{"80/tcp", "80/tcp"},
		{"50-100/udp/6", "50-100/udp/6"},
		{"443/4", "443/4"},
	}
	for _, tt := range tests {
		ps, err := Parse(tt.raw)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", tt.raw, err)
		}
		if got := ps.String(); got != tt.want {
			t.Errorf("Parse(%q).String() = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseHop(t *testing.T) {
	hop, err := ParseHop("9000", "9100-9199/udp/4")
	if err != nil {
		t.Fatalf("ParseHop returned error: %v", err)
	}
	if hop.ToPort != 9000 {
		t.Errorf("ToPort = %d, want 9000", hop.ToPort)
	}
	if hop.From.Start != 9100 || hop.From.End != 9199 {
		t.Errorf("From range = [%d,%d], want [9100,9199]", hop.From.Start, hop.From.End)
	}
	if !reflect.DeepEqual(hop.From.Protocols, []Protocol{ProtocolUDP}) {
		t.Errorf("From.Protocols = %v, want [udp]", hop.From.Protocols)
	}
}

func TestParseHopRejectsInvalidToPort(t *testing.T) {
	for _, to := range []string{"", "0", "65536", "abc", "-1"} {
		if _, err := ParseHop(to, "80/tcp"); err == nil {
			t.Errorf("ParseHop(%q, ...) accepted invalid destination port", to)
		}
	}
}

func TestParseHopRejectsInvalidFromSpec(t *testing.T) {
	if _, err := ParseHop("9000", "100-50"); err == nil {
		t.Error("ParseHop accepted invalid from spec")
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"80, 443/tcp 53/udp", []string{"80", "443/tcp", "53/udp"}},
		{"80,443", []string{"80", "443"}},
		{"  80  ", []string{"80"}},
		{"", nil},
		{" , , ", nil},
	}
	for _, tt := range tests {
		got := SplitList(tt.line)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitList(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
