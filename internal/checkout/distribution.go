package checkout

// DistributionEntry says which ordered units (1-based, inclusive) are made
// from the image at ImageIndex.
type DistributionEntry struct {
	ImageIndex int `json:"image_index"`
	Start      int `json:"start"`
	End        int `json:"end"`
	Count      int `json:"count"`
}

// Distribute partitions quantity units over imageCount images.
//
// With more images than units, the first quantity images cover one unit each
// and the rest cover none. Otherwise every image covers quantity/imageCount
// units and the first quantity%imageCount images cover one more, in a single
// contiguous run starting at unit 1.
func Distribute(quantity, imageCount int) []DistributionEntry {
	if imageCount <= 0 {
		return []DistributionEntry{}
	}

	entries := make([]DistributionEntry, imageCount)
	for i := range entries {
		entries[i].ImageIndex = i
	}

	if quantity <= 0 {
		return entries
	}

	if imageCount > quantity {
		for i := 0; i < quantity; i++ {
			entries[i].Start = i + 1
			entries[i].End = i + 1
			entries[i].Count = 1
		}
		return entries
	}

	base := quantity / imageCount
	remainder := quantity % imageCount
	next := 1
	for i := range entries {
		count := base
		if i < remainder {
			count++
		}
		entries[i].Start = next
		entries[i].End = next + count - 1
		entries[i].Count = count
		next += count
	}

	return entries
}
