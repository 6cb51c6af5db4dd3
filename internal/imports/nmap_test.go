package imports

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const nmapXML = `<?xml version="1.0"?>
<nmaprun>
  <host>
    <status state="up"/>
    <address addr="192.168.1.10" addrtype="ipv4"/>
    <address addr="AA:BB:CC:DD:EE:FF" addrtype="mac" vendor="VMware, Inc."/>
  </host>
  <host>
    <status state="up"/>
    <address addr="192.168.1.11" addrtype="ipv4"/>
    <address addr="AA:BB:CC:DD:EE:00" addrtype="mac" vendor="Dell Inc."/>
  </host>
  <host>
    <status state="down"/>
    <address addr="192.168.1.12" addrtype="ipv4"/>
  </host>
  <host>
    <status state="up"/>
    <address addr="192.168.1.10" addrtype="ipv4"/>
  </host>
  <host>
    <status state="up"/>
    <address addr="192.168.1.13" addrtype="ipv4"/>
  </host>
</nmaprun>`

func TestNmapImporter_Parse(t *testing.T) {
	importer := &NmapImporter{Now: func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}}
	bundle, err := importer.Parse(map[string][]byte{"nmap": []byte(nmapXML)}, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	// Down hosts and the duplicate of .10 are dropped.
	if len(bundle.IPAssets) != 3 {
		t.Fatalf("assets = %+v, want 3", bundle.IPAssets)
	}

	byIP := make(map[string]IPAsset, len(bundle.IPAssets))
	for _, asset := range bundle.IPAssets {
		byIP[asset.IPAddress] = asset
	}
	if got := byIP["192.168.1.10"].AssetType; got != "VM" {
		t.Errorf("vmware host type = %s, want VM", got)
	}
	if got := byIP["192.168.1.11"].AssetType; got != "OS" {
		t.Errorf("dell host type = %s, want OS", got)
	}
	if got := byIP["192.168.1.13"].AssetType; got != "OTHER" {
		t.Errorf("unknown vendor type = %s, want OTHER", got)
	}

	first := byIP["192.168.1.10"]
	if first.Notes == nil || !strings.Contains(*first.Notes, "2026-03-01T12:00:00Z") {
		t.Errorf("notes = %v, want discovery timestamp", first.Notes)
	}
	if !first.PreserveExistingNotes || !first.NotesProvided {
		t.Errorf("scan drafts must not clobber manual notes: %+v", first)
	}
}

func TestNmapImporter_DefaultType(t *testing.T) {
	importer := &NmapImporter{}
	bundle, err := importer.Parse(map[string][]byte{"nmap": []byte(nmapXML)},
		Options{DefaultAssetType: "VIP"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, asset := range bundle.IPAssets {
		if asset.IPAddress == "192.168.1.13" && asset.AssetType != "VIP" {
			t.Errorf("fallback type = %s, want VIP", asset.AssetType)
		}
	}
}

func TestNmapImporter_InvalidXML(t *testing.T) {
	_, err := (&NmapImporter{}).Parse(map[string][]byte{"nmap": []byte("<nmaprun")}, Options{})
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
	if parseErr.Message != "Invalid Nmap XML payload." {
		t.Errorf("message = %q", parseErr.Message)
	}
}
