package location_test

import (
	"testing"

	"github.com/forkline/delivery-metrics/location"
	"github.com/forkline/delivery-metrics/platform"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

func vegasStore() location.CanonicalLocation {
	return location.CanonicalLocation{
		ID:      "loc_vegas",
		OwnerID: "acct_1",
		Name:    "Flamingo Road",
		Address: "4105 Flamingo Rd",
		City:    "Las Vegas",
		State:   "NV",
		PlatformIDs: map[platform.Platform]string{
			platform.DoorDash: "NV067",
			platform.Grubhub:  "10423",
		},
	}
}

func renoStore() location.CanonicalLocation {
	return location.CanonicalLocation{
		ID:      "loc_reno",
		OwnerID: "acct_1",
		Name:    "South Virginia",
		Address: "6395 S Virginia St",
		City:    "Reno",
		State:   "NV",
	}
}

func bucket() location.CanonicalLocation {
	return location.CanonicalLocation{
		ID:      "loc_bucket",
		OwnerID: "acct_1",
		Name:    location.UnmappedBucketName,
		Tag:     location.TagUnmappedBucket,
	}
}

// =============================================================================
// STAGE 1: EXACT CODE
// =============================================================================

func TestResolve_EmbeddedCodeIsAuthoritative(t *testing.T) {
	// GIVEN: a name embedding "(NV067)" that also text-matches a DIFFERENT
	//        location's city
	// WHEN: resolving
	// THEN: the code match wins at full confidence; scoring never runs

	master := []location.CanonicalLocation{renoStore(), vegasStore()}
	r := location.NewResolver("Capriotti's")

	c := r.Resolve("Capriotti's Reno (NV067)", platform.DoorDash, master, nil)

	if c.LocationID != "loc_vegas" {
		t.Fatalf("LocationID = %q, want loc_vegas", c.LocationID)
	}
	if c.Method != location.MethodStoreIDExact {
		t.Errorf("Method = %q, want %q", c.Method, location.MethodStoreIDExact)
	}
	if c.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", c.Confidence)
	}
	if c.ExtractedCode != "NV067" {
		t.Errorf("ExtractedCode = %q, want NV067", c.ExtractedCode)
	}
}

func TestResolve_SeparateStoreCodeField(t *testing.T) {
	// GIVEN: a bare name plus a store code arriving in its own column
	// WHEN: resolving with the code in the context
	// THEN: the code matches the platform identifier exactly

	master := []location.CanonicalLocation{vegasStore(), renoStore()}
	r := location.NewResolver()

	c := r.Resolve("Capriotti's", platform.Grubhub, master,
		&location.ResolveContext{StoreCode: "10423"})

	if c.LocationID != "loc_vegas" || c.Method != location.MethodStoreIDExact {
		t.Fatalf("got %q via %q, want loc_vegas via store_id_exact", c.LocationID, c.Method)
	}
}

func TestResolve_CodeForWrongPlatformDoesNotMatch(t *testing.T) {
	// GIVEN: a DoorDash code on an Uber Eats row
	// WHEN: resolving
	// THEN: the exact stage misses; identifiers are per-platform

	master := []location.CanonicalLocation{vegasStore()}
	r := location.NewResolver()

	c := r.Resolve("(NV067)", platform.UberEats, master, nil)

	if c.Method == location.MethodStoreIDExact {
		t.Fatal("DoorDash identifier must not satisfy an Uber Eats lookup")
	}
}

// =============================================================================
// STAGE 2: GEOGRAPHIC/TEXT SCORING
// =============================================================================

func TestResolve_CityAfterDash(t *testing.T) {
	// GIVEN: the "Brand - City" naming convention
	// WHEN: resolving against stores in different cities
	// THEN: the city overlap alone clears the acceptance threshold

	master := []location.CanonicalLocation{renoStore(), vegasStore()}
	r := location.NewResolver("Capriotti's")

	c := r.Resolve("Capriotti's - Las Vegas", platform.UberEats, master, nil)

	if c.LocationID != "loc_vegas" {
		t.Fatalf("LocationID = %q, want loc_vegas", c.LocationID)
	}
	if c.Method != location.MethodAddressCity {
		t.Errorf("Method = %q, want %q", c.Method, location.MethodAddressCity)
	}
	if c.Confidence < 0.4 {
		t.Errorf("Confidence = %v, want >= accept threshold", c.Confidence)
	}
}

func TestResolve_StreetKeywordsPlusCity(t *testing.T) {
	// GIVEN: a name carrying both street keywords and a trailing city
	// WHEN: resolving
	// THEN: the combined score is confident and the right store wins

	master := []location.CanonicalLocation{vegasStore(), renoStore()}
	r := location.NewResolver("Capriotti's")

	c := r.Resolve("Capriotti's S Virginia St - Reno", platform.UberEats, master, nil)

	if c.LocationID != "loc_reno" {
		t.Fatalf("LocationID = %q, want loc_reno", c.LocationID)
	}
	if c.Confidence < 0.8 {
		t.Errorf("Confidence = %v, want >= 0.8 (city + street keywords)", c.Confidence)
	}
}

func TestResolve_TieBreaksToFirstSeen(t *testing.T) {
	// GIVEN: two registry entries scoring identically for a name
	// WHEN: resolving twice
	// THEN: the earlier entry wins both times; resolution is deterministic

	a := renoStore()
	a.ID, a.Name, a.Address = "loc_a", "Qq Ww", ""
	b := renoStore()
	b.ID, b.Name, b.Address = "loc_b", "Xx Yy", ""
	master := []location.CanonicalLocation{a, b}
	r := location.NewResolver("Capriotti's")

	first := r.Resolve("Capriotti's - Reno", platform.UberEats, master, nil)
	second := r.Resolve("Capriotti's - Reno", platform.UberEats, master, nil)

	if first.LocationID != "loc_a" {
		t.Fatalf("LocationID = %q, want loc_a (first seen)", first.LocationID)
	}
	if first != second {
		t.Errorf("resolution not deterministic: %+v vs %+v", first, second)
	}
}

func TestResolve_UnmappedBucketNeverScores(t *testing.T) {
	// GIVEN: a registry holding only the unmapped bucket
	// WHEN: resolving any name
	// THEN: the bucket is never offered as a match

	master := []location.CanonicalLocation{bucket()}
	r := location.NewResolver()

	c := r.Resolve("Unmapped Locations", platform.DoorDash, master, nil)

	if c.Matched() {
		t.Fatalf("bucket must not match, got %+v", c)
	}
}

// =============================================================================
// STAGE 3: CROSS-REFERENCE
// =============================================================================

func TestResolve_CrossRefBridgesUnscorableName(t *testing.T) {
	// GIVEN: a name Stage 2 cannot place, plus a secondary export linking
	//        that name fragment to an external code
	// WHEN: resolving with the cross-reference
	// THEN: the code resolves through platform identifiers at 0.85

	loc := vegasStore()
	loc.City = "" // defeat city scoring
	loc.Address = ""
	master := []location.CanonicalLocation{loc}
	r := location.NewResolver()

	c := r.Resolve("Capriotti's #4012", platform.Grubhub, master,
		&location.ResolveContext{CrossRef: []location.CrossRefEntry{
			{Name: "capriotti's #4012", City: "Las Vegas", Code: "10423"},
		}})

	if c.LocationID != "loc_vegas" {
		t.Fatalf("LocationID = %q, want loc_vegas", c.LocationID)
	}
	if c.Method != location.MethodCrossRef {
		t.Errorf("Method = %q, want %q", c.Method, location.MethodCrossRef)
	}
	if c.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want 0.85", c.Confidence)
	}
}

func TestResolve_ConfidentScoreSkipsCrossRef(t *testing.T) {
	// GIVEN: a name scoring at the top of Stage 2 AND a cross-reference
	//        pointing somewhere else
	// WHEN: resolving
	// THEN: the confident Stage 2 match stands

	master := []location.CanonicalLocation{vegasStore(), renoStore()}
	r := location.NewResolver("Capriotti's")

	c := r.Resolve("Capriotti's Flamingo Rd - Las Vegas", platform.UberEats, master,
		&location.ResolveContext{CrossRef: []location.CrossRefEntry{
			{Name: "flamingo", Code: "ignored"},
		}})

	if c.LocationID != "loc_vegas" || c.Method != location.MethodAddressCity {
		t.Fatalf("got %q via %q, want loc_vegas via address_city", c.LocationID, c.Method)
	}
}

// =============================================================================
// STAGE 4: UNMATCHED
// =============================================================================

func TestResolve_UnmatchedDegradesGracefully(t *testing.T) {
	// GIVEN: garbage input and an empty registry
	// WHEN: resolving
	// THEN: the candidate is unmatched at zero confidence, never an error

	r := location.NewResolver()

	for _, name := range []string{"", "???", "Totally Unknown Kiosk"} {
		c := r.Resolve(name, platform.DoorDash, nil, nil)
		if c.Matched() {
			t.Errorf("Resolve(%q) matched %+v, want unmatched", name, c)
		}
		if c.Confidence != 0 {
			t.Errorf("Resolve(%q) confidence = %v, want 0", name, c.Confidence)
		}
	}
}

// =============================================================================
// CODE EXTRACTION
// =============================================================================

func TestExtractStoreCode(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Capriotti's Main St (NV067)", "NV067"},
		{"(AZ5) Downtown", "AZ5"},
		{"No code here", ""},
		{"(lowercase12)", ""},
		{"(123)", ""},
	}
	for _, c := range cases {
		if got := location.ExtractStoreCode(c.in); got != c.want {
			t.Errorf("ExtractStoreCode(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
