package sstv

// Colour orders used by the canonical modes.
var (
	orderGBR = [3]Channel{Green, Blue, Red}
	orderRGB = [3]Channel{Red, Green, Blue}
)

func robotBW(name string, vis uint8, width, height int, sync, scan float64) Mode {
	return Mode{Name: name, VIS: vis, Width: width, Height: height,
		Layout: LayoutGrayscale, Sync: sync, Scan: scan}
}

func martin(name string, vis uint8, width int, scan float64) Mode {
	return Mode{Name: name, VIS: vis, Width: width, Height: 256,
		Layout: LayoutColorSequential, Sync: 4.862, Scan: scan, Gap: 0.572,
		Order: orderGBR}
}

func scottie(name string, vis uint8, width int, scan float64) Mode {
	return Mode{Name: name, VIS: vis, Width: width, Height: 256,
		Layout: LayoutScottie, Sync: 9, Scan: scan, Gap: 1.5,
		Order: orderGBR}
}

// pasokon derives every timing from the mode's time unit in ms.
func pasokon(name string, vis uint8, unit float64) Mode {
	const width = 640
	return Mode{Name: name, VIS: vis, Width: width, Height: 480 + 16,
		Layout: LayoutFixedPorch, Sync: 25 * unit, Scan: width * unit,
		Gap: 5 * unit, Order: orderRGB}
}

func pd(name string, vis uint8, width, height int, pixel float64) Mode {
	return Mode{Name: name, VIS: vis, Width: width, Height: height,
		Layout: LayoutYUVPaired, Sync: 20, Porch: 2.08, Pixel: pixel}
}

// canonicalModes is the enumeration order of [DefaultRegistry].
func canonicalModes() []Mode {
	return []Mode{
		robotBW("Robot8BW", 0x02, 160, 120, 7, 60),
		robotBW("Robot24BW", 0x0A, 320, 240, 7, 93),
		martin("MartinM1", 0x2C, 320, 146.432),
		martin("MartinM2", 0x28, 160, 73.216),
		scottie("ScottieS1", 0x3C, 320, 138.24),
		scottie("ScottieS2", 0x38, 160, 88.064),
		scottie("ScottieDX", 0x4C, 320, 345.6),
		{
			Name: "Robot36", VIS: 0x08, Width: 320, Height: 240,
			Layout: LayoutYUVAlternating, Sync: 9, SyncPorch: 3, Scan: 88,
			Separator: 4.5, Porch: 1.5, ChromaScan: 44,
		},
		pasokon("PasokonP3", 0x71, 1000.0/4800),
		pasokon("PasokonP5", 0x72, 1000.0/3200),
		pasokon("PasokonP7", 0x73, 1000.0/2400),
		pd("PD90", 0x63, 320, 256, 0.532),
		pd("PD120", 0x5F, 640, 496, 0.19),
		pd("PD160", 0x62, 512, 400, 0.382),
		pd("PD180", 0x60, 640, 496, 0.286),
		pd("PD240", 0x61, 640, 496, 0.382),
		pd("PD290", 0x5E, 800, 616, 0.286),
		{
			Name: "WraaseSC2180", VIS: 0x37, Width: 320, Height: 256,
			Layout: LayoutSinglePorch, Sync: 5.5225, Porch: 0.5, Scan: 235,
			Order: orderRGB,
		},
	}
}
