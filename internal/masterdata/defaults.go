package masterdata

// DefaultUnitOrder is the canonical order of the service units.
var DefaultUnitOrder = []string{
	"ULP Bukittinggi",
	"ULP Padang Panjang",
	"ULP Lubuk Sikaping",
	"ULP Lubuk Basung",
	"ULP Simpang Empat",
	"ULP Baso",
	"ULP Koto Tuo",
}

func isDefaultUnit(name string) bool {
	for _, unit := range DefaultUnitOrder {
		if unit == name {
			return true
		}
	}
	return false
}

// DefaultCatalog returns a fresh copy of the initial master data.
func DefaultCatalog() Catalog {
	return Catalog{
		"ULP Bukittinggi": {
			Name:     "ULP Bukittinggi",
			Officers: []string{"Ahmad Zaki", "Budi Santoso", "Candra Wijaya", "Doni Kurniawan"},
			Feeders:  []string{"BKT.01", "BKT.02", "BKT.03", "BKT.Express"},
			Keypoints: map[string][]string{
				"BKT.01":      {"KP BKT1-A", "KP BKT1-B", "KP BKT1-C"},
				"BKT.02":      {"KP BKT2-X", "KP BKT2-Y"},
				"BKT.03":      {"KP BKT3-Alpha", "KP BKT3-Beta"},
				"BKT.Express": {"Express Point A", "Express Point B"},
			},
		},
		"ULP Padang Panjang": {
			Name:     "ULP Padang Panjang",
			Officers: []string{"Eko Prasetyo", "Fajar Nugroho", "Gilang Ramadhan"},
			Feeders:  []string{"PP.01", "PP.02", "PP.Industri"},
			Keypoints: map[string][]string{
				"PP.01":       {"Keypoint PP1-1", "Keypoint PP1-2"},
				"PP.02":       {"Keypoint PP2-A", "Keypoint PP2-B"},
				"PP.Industri": {"Zone Industri 1", "Zone Industri 2"},
			},
		},
		"ULP Lubuk Sikaping": {
			Name:     "ULP Lubuk Sikaping",
			Officers: []string{"Hendra Gunawan", "Indra Lesmana", "Joko Susilo"},
			Feeders:  []string{"LBS.01", "LBS.02"},
			Keypoints: map[string][]string{
				"LBS.01": {"LBS.01-KP1", "LBS.01-KP2"},
				"LBS.02": {"LBS.02-KP1", "LBS.02-KP2"},
			},
		},
		"ULP Lubuk Basung": {
			Name:     "ULP Lubuk Basung",
			Officers: []string{"Kiki Amalia", "Lukman Hakim", "Muhammad Ilham"},
			Feeders:  []string{"LBB.01", "LBB.02", "LBB.03"},
			Keypoints: map[string][]string{
				"LBB.01": {"LBB.01-A", "LBB.01-B"},
				"LBB.02": {"LBB.02-A", "LBB.02-B"},
				"LBB.03": {"LBB.03-A", "LBB.03-B"},
			},
		},
		"ULP Simpang Empat": {
			Name:     "ULP Simpang Empat",
			Officers: []string{"Nanda Putra", "Oki Setiawan", "Putra Pratama"},
			Feeders:  []string{"SPE.01", "SPE.02", "SPE.03", "SPE.04"},
			Keypoints: map[string][]string{
				"SPE.01": {"SPE.01-Point1", "SPE.01-Point2"},
				"SPE.02": {"SPE.02-Point1", "SPE.02-Point2"},
				"SPE.03": {"SPE.03-Point1", "SPE.03-Point2"},
				"SPE.04": {"SPE.04-Point1", "SPE.04-Point2"},
			},
		},
		"ULP Baso": {
			Name:     "ULP Baso",
			Officers: []string{"Qori Sandi", "Rian Hidayat", "Surya Saputra"},
			Feeders:  []string{"BSO.01", "BSO.02"},
			Keypoints: map[string][]string{
				"BSO.01": {"BSO-1", "BSO-2"},
				"BSO.02": {"BSO-3", "BSO-4"},
			},
		},
		"ULP Koto Tuo": {
			Name:     "ULP Koto Tuo",
			Officers: []string{"Taufik Hidayat", "Usman Harun", "Vicky Nitinegoro"},
			Feeders:  []string{"KT.01", "KT.02"},
			Keypoints: map[string][]string{
				"KT.01": {"KT1-1", "KT1-2"},
				"KT.02": {"KT2-1", "KT2-2"},
			},
		},
	}
}
