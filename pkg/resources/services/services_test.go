package services

import "testing"

func TestDHCPRange_Validate(t *testing.T) {
	cases := []struct {
		name  string
		props map[string]interface{}
		ok    bool
	}{
		{"valid", map[string]interface{}{"interface": "lan", "from": "192.168.1.10", "to": "192.168.1.100"}, true},
		{"reversed range", map[string]interface{}{"interface": "lan", "from": "192.168.1.100", "to": "192.168.1.10"}, false},
		{"bad ip", map[string]interface{}{"interface": "lan", "from": "nope", "to": "192.168.1.10"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := NewDHCPRange("test", c.props).(*DHCPRange)
			result := d.Validate()
			if result.OK != c.ok {
				t.Errorf("Validate() = %+v, want ok=%v", result, c.ok)
			}
		})
	}
}

func TestDHCPStatic_Validate_MACNormalization(t *testing.T) {
	d := NewDHCPStatic("host1", map[string]interface{}{
		"interface": "lan", "mac": "AA:BB:CC:DD:EE:FF", "ip": "192.168.1.50",
	}).(*DHCPStatic)
	if !d.Validate().OK {
		t.Fatalf("expected valid, got %+v", d.Validate())
	}
	payload, err := d.ToAPIPayload()
	if err != nil {
		t.Fatalf("ToAPIPayload: %v", err)
	}
	if payload.Properties["mac"] != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("expected lower-cased MAC, got %v", payload.Properties["mac"])
	}
}

func TestDHCPStatic_Validate_BadMAC(t *testing.T) {
	d := NewDHCPStatic("host1", map[string]interface{}{
		"interface": "lan", "mac": "not-a-mac", "ip": "192.168.1.50",
	}).(*DHCPStatic)
	if d.Validate().OK {
		t.Error("expected invalid MAC to fail validation")
	}
}

func TestDNSOverride_Validate(t *testing.T) {
	cases := []struct {
		name  string
		props map[string]interface{}
		ok    bool
	}{
		{"valid", map[string]interface{}{"hostname": "printer-1", "domain": "lan.local", "ip": "192.168.1.5"}, true},
		{"bad hostname", map[string]interface{}{"hostname": "printer_1!", "domain": "lan.local", "ip": "192.168.1.5"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := NewDNSOverride("test", c.props).(*DNSOverride)
			result := d.Validate()
			if result.OK != c.ok {
				t.Errorf("Validate() = %+v, want ok=%v", result, c.ok)
			}
		})
	}
}

func TestHAProxyBackend_Validate(t *testing.T) {
	cases := []struct {
		name  string
		props map[string]interface{}
		ok    bool
	}{
		{"valid", map[string]interface{}{"mode": "http", "balance": "roundrobin"}, true},
		{"bad balance", map[string]interface{}{"mode": "http", "balance": "weighted"}, false},
		{"bad mode", map[string]interface{}{"mode": "udp", "balance": "roundrobin"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := NewHAProxyBackend("test", c.props).(*HAProxyBackend)
			result := b.Validate()
			if result.OK != c.ok {
				t.Errorf("Validate() = %+v, want ok=%v", result, c.ok)
			}
		})
	}
}

func TestHAProxyServer_DependsOnBackend(t *testing.T) {
	s := NewHAProxyServer("web1", map[string]interface{}{
		"backend": "webpool", "address": "10.0.0.5", "port": float64(8080),
	}).(*HAProxyServer)
	if !s.Validate().OK {
		t.Fatalf("expected valid, got %+v", s.Validate())
	}
	refs := s.DependencyRefs()
	if len(refs) != 1 || refs[0].TargetID != HAProxyBackendTypeID+":webpool" {
		t.Errorf("expected hard dependency on backend, got %v", refs)
	}
}

func TestHAProxyFrontend_Validate(t *testing.T) {
	cases := []struct {
		name  string
		props map[string]interface{}
		ok    bool
	}{
		{"valid any bind", map[string]interface{}{
			"bindAddress": "any", "bindPort": float64(443), "mode": "http", "defaultBackend": "webpool",
		}, true},
		{"bad port", map[string]interface{}{
			"bindAddress": "any", "bindPort": float64(0), "mode": "http", "defaultBackend": "webpool",
		}, false},
		{"missing backend", map[string]interface{}{
			"bindAddress": "any", "bindPort": float64(443), "mode": "http",
		}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := NewHAProxyFrontend("test", c.props).(*HAProxyFrontend)
			result := f.Validate()
			if result.OK != c.ok {
				t.Errorf("Validate() = %+v, want ok=%v", result, c.ok)
			}
		})
	}
}
