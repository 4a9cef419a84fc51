package rack

// ClearOpening is the inside width of a bay between two uprights: the totes
// side by side, the gaps between them and the gap to each upright.
func (c Configuration) ClearOpening() float64 {
	qty := float64(c.ToteQtyPerBay)
	return qty*c.ToteWidth + (qty-1)*c.ToteToToteDist + 2*c.ToteToUprightDist
}

// BayUnit is the repeating length of one bay along a rack row.
func (c Configuration) BayUnit() float64 {
	return c.UprightLength + c.ClearOpening()
}

// BayDepthConfig is the rack depth when the configured number of totes is
// stored one behind another. It is never shallower than the upright.
func (c Configuration) BayDepthConfig() float64 {
	deep := float64(c.TotesDeep)
	d := deep*c.ToteLength + (deep-1)*c.ToteBackToBackDist + c.HookAllowance
	return max(d, c.UprightWidth)
}

// BayDepthSingle is the rack depth for a single tote deep.
func (c Configuration) BayDepthSingle() float64 {
	return max(c.ToteLength+c.HookAllowance, c.UprightWidth)
}

// TotesDeepFor returns the totes-deep count for a rack of the given depth
// kind: the configured count for configuration-depth racks, one otherwise.
func (c Configuration) TotesDeepFor(singleDepth bool) int {
	if singleDepth {
		return 1
	}
	return c.TotesDeep
}

// ToteVolumeM3 is the volume of one tote in cubic metres.
func (c Configuration) ToteVolumeM3() float64 {
	return c.ToteWidth * c.ToteLength * c.ToteHeight / 1e9
}
