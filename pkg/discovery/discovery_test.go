package discovery

import "testing"

func TestKeys(t *testing.T) {
	inst := &ServiceInstance{Name: "kiosk-orders", Host: "10.0.0.5", Port: 50061}

	for _, prefix := range []string{"/services", "/services/"} {
		if got := instanceKey(prefix, inst); got != "/services/kiosk-orders/10.0.0.5:50061" {
			t.Errorf("instanceKey(%q) = %s", prefix, got)
		}
	}
	if got := serviceKey("/services", "kiosk-orders"); got != "/services/kiosk-orders/" {
		t.Errorf("serviceKey() = %s", got)
	}
}

func TestParseInstance(t *testing.T) {
	tests := []struct {
		addr    string
		want    string
		wantErr bool
	}{
		{addr: "10.0.0.5:50061", want: "10.0.0.5:50061"},
		{addr: "[::1]:9000", want: "[::1]:9000"},
		{addr: "no-port", wantErr: true},
		{addr: "host:abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			inst, err := parseInstance("kiosk-orders", tt.addr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseInstance() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && inst.Addr() != tt.want {
				t.Errorf("Addr() = %s, want %s", inst.Addr(), tt.want)
			}
		})
	}
}
