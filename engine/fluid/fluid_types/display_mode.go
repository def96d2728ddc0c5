package fluid_types

import (
	"fmt"
	"strings"
)

// DisplayMode selects what the composite pass writes to the screen. The set is closed:
// every value outside [DisplayModeDepth, DisplayModeTotal] is treated as DisplayModeTotal.
type DisplayMode int32

const (
	// DisplayModeDepth shows the blurred, linearized fluid depth.
	DisplayModeDepth DisplayMode = iota
	// DisplayModeNormal shows the reconstructed world-space normals.
	DisplayModeNormal
	// DisplayModePosition shows the view-space particle positions.
	DisplayModePosition
	// DisplayModeColor shows the per-particle color buffer.
	DisplayModeColor
	// DisplayModeDiffuse shows Lambert shading of the fluid surface.
	DisplayModeDiffuse
	// DisplayModeDiffuseSpec shows diffuse plus Blinn-Phong specular shading.
	DisplayModeDiffuseSpec
	// DisplayModeFresnel shows the Schlick Fresnel term.
	DisplayModeFresnel
	// DisplayModeReflection shows the cubemap reflection.
	DisplayModeReflection
	// DisplayModeFresRefl shows the reflection weighted by the Fresnel term.
	DisplayModeFresRefl
	// DisplayModeThickness shows the accumulated particle thickness.
	DisplayModeThickness
	// DisplayModeRefrac shows the thickness-attenuated refraction of the background.
	DisplayModeRefrac
	// DisplayModeTotal shows the fully composited fluid.
	DisplayModeTotal
)

// DisplayModeCount is the number of display modes.
const DisplayModeCount = int(DisplayModeTotal) + 1

var displayModeNames = [DisplayModeCount]string{
	"depth",
	"normal",
	"position",
	"color",
	"diffuse",
	"diffuse_spec",
	"fresnel",
	"reflection",
	"fres_refl",
	"thickness",
	"refrac",
	"total",
}

var displayModeLabels = [DisplayModeCount]string{
	"Drawing Depth",
	"Drawing Normals",
	"Drawing Position",
	"Drawing Color",
	"Drawing Diffuse",
	"Drawing Diffuse + Specular",
	"Drawing Fresnel",
	"Drawing Reflection",
	"Drawing Fresnel * Reflection",
	"Drawing Thickness",
	"Drawing Refraction",
	"Drawing Total",
}

// Normalize returns the mode itself when it is in range and DisplayModeTotal otherwise.
//
// Returns:
//   - DisplayMode: a valid display mode
func (m DisplayMode) Normalize() DisplayMode {
	if m < DisplayModeDepth || m > DisplayModeTotal {
		return DisplayModeTotal
	}
	return m
}

// Name returns the lower-case identifier used in config files and WGSL constants.
func (m DisplayMode) Name() string {
	return displayModeNames[m.Normalize()]
}

// String returns the overlay label for the mode, e.g. "Drawing Depth".
func (m DisplayMode) String() string {
	return displayModeLabels[m.Normalize()]
}

// Next returns the following mode, wrapping from Total back to Depth.
func (m DisplayMode) Next() DisplayMode {
	return DisplayMode((int(m.Normalize()) + 1) % DisplayModeCount)
}

// Prev returns the preceding mode, wrapping from Depth to Total.
func (m DisplayMode) Prev() DisplayMode {
	return DisplayMode((int(m.Normalize()) + DisplayModeCount - 1) % DisplayModeCount)
}

// DisplayModeForKey maps a typed character to a display mode. The digits '1' to '9'
// select Depth through FresRefl, '0' selects Total, and the shifted '!', '@' and '#'
// select Thickness, FresRefl and Refrac.
//
// Parameters:
//   - r: the typed character
//
// Returns:
//   - DisplayMode: the selected mode
//   - bool: false if the character is not bound to a mode
func DisplayModeForKey(r rune) (DisplayMode, bool) {
	switch {
	case r >= '1' && r <= '9':
		return DisplayMode(r - '1'), true
	case r == '0':
		return DisplayModeTotal, true
	case r == '!':
		return DisplayModeThickness, true
	case r == '@':
		return DisplayModeFresRefl, true
	case r == '#':
		return DisplayModeRefrac, true
	}
	return DisplayModeTotal, false
}

// DisplayModeFromName parses a mode identifier such as "fres_refl". Matching is case
// insensitive and accepts '-' in place of '_'.
//
// Parameters:
//   - name: the identifier to parse
//
// Returns:
//   - DisplayMode: the parsed mode
//   - error: an error if the name is unknown
func DisplayModeFromName(name string) (DisplayMode, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for i, n := range displayModeNames {
		if n == key {
			return DisplayMode(i), nil
		}
	}
	return DisplayModeTotal, fmt.Errorf("unknown display mode %q", name)
}

// DisplayModeWGSL generates the WGSL constant block mirroring the enumeration so the
// composite shader switches over the same values the Go side uploads.
//
// Returns:
//   - string: WGSL const declarations, one per mode
func DisplayModeWGSL() string {
	var sb strings.Builder
	for i, n := range displayModeNames {
		fmt.Fprintf(&sb, "const MODE_%s: u32 = %du;\n", strings.ToUpper(n), i)
	}
	return sb.String()
}

// GPUDisplayModeSource is the generated WGSL constant block for the display modes.
var GPUDisplayModeSource = DisplayModeWGSL()
