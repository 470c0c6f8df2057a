package discovery

import (
	"errors"
	"net"
	"strings"
	"testing"
)

type fakeRegistration struct {
	shutdowns int
}

func (r *fakeRegistration) Shutdown() { r.shutdowns++ }

type recordingRegister struct {
	calls []registerCall
	regs  []*fakeRegistration
	err   error
}

type registerCall struct {
	instance, service, domain string
	port                      int
	text                      []string
}

func (r *recordingRegister) register(instance, service, domain string, port int, text []string, _ []net.Interface) (registration, error) {
	r.calls = append(r.calls, registerCall{instance, service, domain, port, text})
	if r.err != nil {
		return nil, r.err
	}
	reg := &fakeRegistration{}
	r.regs = append(r.regs, reg)
	return reg, nil
}

func TestAdvertiser_AdvertiseAndStop(t *testing.T) {
	rec := &recordingRegister{}
	a := NewAdvertiser("Web Control")
	a.register = rec.register

	if err := a.Advertise(8081); err != nil {
		t.Fatalf("Advertise() error = %v", err)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("register called %d times, want 1", len(rec.calls))
	}
	call := rec.calls[0]
	if call.instance != "Web Control" || call.service != ServiceType || call.domain != ServiceDomain || call.port != 8081 {
		t.Errorf("register(%+v) has unexpected arguments", call)
	}
	if !strings.Contains(strings.Join(call.text, ","), "ws=/ws") {
		t.Errorf("TXT records %v should advertise the WebSocket path", call.text)
	}

	a.Stop()
	a.Stop()
	if rec.regs[0].shutdowns != 1 {
		t.Errorf("Shutdown called %d times, want 1", rec.regs[0].shutdowns)
	}
}

func TestAdvertiser_ReadvertiseReplacesRegistration(t *testing.T) {
	rec := &recordingRegister{}
	a := NewAdvertiser("x")
	a.register = rec.register

	_ = a.Advertise(8080)
	_ = a.Advertise(8082)

	if rec.regs[0].shutdowns != 1 {
		t.Error("first registration should be shut down when re-advertising")
	}
	a.Stop()
	if rec.regs[1].shutdowns != 1 {
		t.Error("second registration should be shut down by Stop")
	}
}

func TestAdvertiser_RegisterError(t *testing.T) {
	rec := &recordingRegister{err: errors.New("no multicast interface")}
	a := NewAdvertiser("x")
	a.register = rec.register

	if err := a.Advertise(8080); err == nil {
		t.Fatal("Advertise() should fail when registration fails")
	}
	a.Stop()
}
