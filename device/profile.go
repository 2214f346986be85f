package device

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile is a declarative device description: the object lines and bus
// tunings that would otherwise be fed in by hand.
type Profile struct {
	Name    string   `yaml:"name"`
	Objects []string `yaml:"objects"`
	Tweaks  []string `yaml:"tweaks"`
}

func LoadProfile(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read profile %s: %w", path, err)
	}
	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("could not parse profile %s: %w", path, err)
	}
	return &p, nil
}

// Apply configures the device from the profile and closes the
// configuration phase.
func (d *Device) Apply(p *Profile) error {
	if err := d.ParseObjects(strings.Join(p.Objects, "\n")); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}
	if err := d.ParseBusParams(strings.Join(p.Tweaks, "\n")); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}
	d.FinishInit()
	d.log.Info("profile applied", "profile", p.Name)
	return nil
}
