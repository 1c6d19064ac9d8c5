package helper

import "testing"

type caller struct{}

func (caller) method() string { return GetFuncName() }

func TestGetFuncName(t *testing.T) {
	if got := GetFuncName(); got != "TestGetFuncName" {
		t.Errorf("GetFuncName() = %q, want %q", got, "TestGetFuncName")
	}
	if got := (caller{}).method(); got != "caller.method" {
		t.Errorf("GetFuncName() = %q, want %q", got, "caller.method")
	}
}
