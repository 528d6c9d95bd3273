package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// HardwareKind identifies a target family.
type HardwareKind uint8

// Hardware families
const (
	HardwareCPU HardwareKind = iota + 1
	HardwareFPGA
	HardwarePIM
	HardwareCustom
)

var hardwareNames = [...]string{"", "cpu", "fpga", "pim", "custom"}

func (k HardwareKind) String() string {
	if int(k) < len(hardwareNames) && k != 0 {
		return hardwareNames[k]
	}
	return "hardware(" + strconv.Itoa(int(k)) + ")"
}

// HardwareProfile describes the target of a compilation. Units is the core,
// CLB or PIM unit count; Description is only used by custom profiles.
type HardwareProfile struct {
	Kind        HardwareKind
	Units       int
	Description string
}

// CPU targets cores CPU cores
func CPU(cores int) HardwareProfile { return HardwareProfile{Kind: HardwareCPU, Units: cores} }

// FPGA targets clbs configurable logic blocks
func FPGA(clbs int) HardwareProfile { return HardwareProfile{Kind: HardwareFPGA, Units: clbs} }

// PIM targets units processing-in-memory units
func PIM(units int) HardwareProfile { return HardwareProfile{Kind: HardwarePIM, Units: units} }

// Custom targets an externally placed device. Placement is left empty.
func Custom(description string) HardwareProfile {
	return HardwareProfile{Kind: HardwareCustom, Description: description}
}

// ParseProfile reads "cpu:8", "fpga:1024", "pim:16" or "custom:<text>".
func ParseProfile(s string) (HardwareProfile, error) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(s), ":")
	switch strings.ToLower(kind) {
	case "custom":
		return Custom(arg), nil
	case "cpu", "fpga", "pim":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return HardwareProfile{}, fmt.Errorf("invalid unit count in profile %q: %w", s, err)
		}
		switch strings.ToLower(kind) {
		case "cpu":
			return CPU(n), nil
		case "fpga":
			return FPGA(n), nil
		}
		return PIM(n), nil
	}
	return HardwareProfile{}, fmt.Errorf("unknown hardware profile %q", s)
}

func (p HardwareProfile) String() string {
	if p.Kind == HardwareCustom {
		return "custom:" + p.Description
	}
	return fmt.Sprintf("%s:%d", p.Kind, p.Units)
}

// ResourceKind identifies one placeable unit type.
type ResourceKind uint8

// Resource kinds
const (
	ResourceCPUCore ResourceKind = iota + 1
	ResourceFPGACLB
	ResourcePIMUnit
)

var resourceNames = [...]string{"", "cpu-core", "fpga-clb", "pim-unit"}

func (k ResourceKind) String() string {
	if int(k) < len(resourceNames) && k != 0 {
		return resourceNames[k]
	}
	return "resource(" + strconv.Itoa(int(k)) + ")"
}

// HardwareResource is one placement slot.
type HardwareResource struct {
	Kind  ResourceKind
	Index int
}

// CPUCore returns core n
func CPUCore(n int) HardwareResource { return HardwareResource{Kind: ResourceCPUCore, Index: n} }

// FPGACLB returns logic block n
func FPGACLB(n int) HardwareResource { return HardwareResource{Kind: ResourceFPGACLB, Index: n} }

// PIMUnit returns memory unit n
func PIMUnit(n int) HardwareResource { return HardwareResource{Kind: ResourcePIMUnit, Index: n} }

func (r HardwareResource) String() string { return fmt.Sprintf("%s#%d", r.Kind, r.Index) }

// resource returns the constructor for slots of the profile.
func (p HardwareProfile) resource() (func(int) HardwareResource, bool) {
	switch p.Kind {
	case HardwareCPU:
		return CPUCore, true
	case HardwareFPGA:
		return FPGACLB, true
	case HardwarePIM:
		return PIMUnit, true
	}
	return nil, false
}
