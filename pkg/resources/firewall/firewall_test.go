package firewall

import "testing"

func TestRule_Validate(t *testing.T) {
	cases := []struct {
		name  string
		props map[string]interface{}
		ok    bool
	}{
		{"valid", map[string]interface{}{
			"interface": "lan", "action": "pass", "protocol": "tcp",
			"source": "lannet", "destination": "any", "destinationPort": "443",
		}, true},
		{"bad action", map[string]interface{}{
			"interface": "lan", "action": "allow", "source": "lannet", "destination": "any",
		}, false},
		{"missing source", map[string]interface{}{
			"interface": "lan", "action": "pass", "destination": "any",
		}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := NewRule("test", c.props).(*Rule)
			result := r.Validate()
			if result.OK != c.ok {
				t.Errorf("Validate() = %+v, want ok=%v", result, c.ok)
			}
		})
	}
}

func TestRule_Validate_SecurityWarning(t *testing.T) {
	r := NewRule("wide-open", map[string]interface{}{
		"interface": "wan", "action": "pass", "source": "any", "destination": "any",
	}).(*Rule)
	result := r.Validate()
	if !result.OK {
		t.Fatalf("expected rule to still be structurally valid, got %+v", result)
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a security-relevant-property warning for pass/any/any")
	}
}

func TestAlias_Validate(t *testing.T) {
	cases := []struct {
		name  string
		props map[string]interface{}
		ok    bool
	}{
		{"valid host", map[string]interface{}{
			"kind": "host", "entries": []interface{}{"10.0.0.1", "10.0.0.2"},
		}, true},
		{"bad kind", map[string]interface{}{
			"kind": "subnet", "entries": []interface{}{"10.0.0.1"},
		}, false},
		{"empty entries", map[string]interface{}{
			"kind": "host", "entries": []interface{}{},
		}, false},
		{"bad host entry", map[string]interface{}{
			"kind": "host", "entries": []interface{}{"not-an-ip"},
		}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a := NewAlias("test", c.props).(*Alias)
			result := a.Validate()
			if result.OK != c.ok {
				t.Errorf("Validate() = %+v, want ok=%v", result, c.ok)
			}
		})
	}
}

func TestNATOutbound_Validate(t *testing.T) {
	cases := []struct {
		name  string
		props map[string]interface{}
		ok    bool
	}{
		{"valid", map[string]interface{}{
			"interface": "wan", "source": "lannet", "translation": "203.0.113.5",
		}, true},
		{"interface translation allowed", map[string]interface{}{
			"interface": "wan", "source": "lannet", "translation": "interface",
		}, true},
		{"missing translation", map[string]interface{}{
			"interface": "wan", "source": "lannet",
		}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			n := NewNATOutbound("test", c.props).(*NATOutbound)
			result := n.Validate()
			if result.OK != c.ok {
				t.Errorf("Validate() = %+v, want ok=%v", result, c.ok)
			}
		})
	}
}
