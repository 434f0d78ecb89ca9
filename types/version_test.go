package types //nolint:revive // types is a valid package name

import (
	"regexp"
	"testing"
)

func TestVersion_Format(t *testing.T) {
	// Version should be a valid semver
	semverRegex := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	if !semverRegex.MatchString(Version) {
		t.Errorf("Version %q is not a valid semver", Version)
	}
}

type stubSource struct{ id int }

func (s *stubSource) SetFrameCallback(FrameCallback) {}
func (s *stubSource) ClearFrameCallback()            {}

func TestSourceFinderFunc(t *testing.T) {
	known := &stubSource{id: 7}
	finder := SourceFinderFunc(func(id int) (Source, bool) {
		if id == known.id {
			return known, true
		}
		return nil, false
	})

	got, ok := finder.FindSourceByID(7)
	if !ok || got != known {
		t.Fatalf("FindSourceByID(7) = %v, %v; want known source", got, ok)
	}
	if _, ok := finder.FindSourceByID(8); ok {
		t.Error("FindSourceByID(8) should not resolve")
	}
}
