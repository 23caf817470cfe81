package board

// Bucket is one of the fixed pipeline stages a trip card moves through.
type Bucket string

const (
	BucketPending        Bucket = "Pending/In Progress"
	BucketApprovedNotTAd Bucket = "Approved, Not TA'd"
	BucketTAInProgress   Bucket = "Approved, TA in progress"
	BucketReadyForBundle Bucket = "TA Completed, Ready for bundle"
	BucketBundling       Bucket = "Bundling in Progress"
	BucketCompleted      Bucket = "Bundle Completed"
	BucketLabeled        Bucket = "Labeled"
)

// Buckets lists every stage in canonical board order. Only the first four are
// reachable from CSV imports; the rest track the physical downstream process
// and are entered by hand.
var Buckets = []Bucket{
	BucketPending,
	BucketApprovedNotTAd,
	BucketTAInProgress,
	BucketReadyForBundle,
	BucketBundling,
	BucketCompleted,
	BucketLabeled,
}

// ValidBucket reports whether b is one of the known stages.
func ValidBucket(b Bucket) bool {
	for _, known := range Buckets {
		if b == known {
			return true
		}
	}
	return false
}

// Classify derives the pipeline stage for a trip from its verification status
// and item counts. Rules apply in order; the final branch is unreachable when
// ready has been clamped to accepted at ingestion, but kept as a fallback.
func Classify(status string, accepted, ready int) Bucket {
	switch {
	case status != "TX Approved":
		return BucketPending
	case ready == 0:
		return BucketApprovedNotTAd
	case ready > 0 && ready < accepted:
		return BucketTAInProgress
	case ready == accepted:
		return BucketReadyForBundle
	default:
		return BucketPending
	}
}

// Card is the canonical record for one trip. AssignedTo is nil while the trip
// is unassigned. Once ManuallyMoved is set by a direct edit, CSV merges stop
// re-deriving CurrentBucket; only re-creation resets it.
type Card struct {
	TripID                 string  `json:"tripId"`
	Traveler               string  `json:"traveler"`
	USADest                string  `json:"usaDest"`
	ItemsAccepted          int     `json:"itemsAccepted"`
	ItemsReadyToProcess    int     `json:"itemsReadyToProcess"`
	TotalBundleWeight      string  `json:"totalBundleWeight"`
	TripVerificationStatus string  `json:"tripVerificationStatus"`
	LatamDeparture         string  `json:"latamDeparture"`
	LatamArrival           string  `json:"latamArrival"`
	ShipBundle             string  `json:"shipBundle"`
	MaxUSADate             string  `json:"maxUSADate"`
	AssignedTo             *string `json:"assignedTo"`
	CurrentBucket          Bucket  `json:"currentBucket"`
	ManuallyMoved          bool    `json:"manuallyMoved"`
}

// ApplyUpdate merges one trip update into an existing card, or creates the
// card when prev is nil. New cards start unassigned with a classified bucket;
// existing cards keep their assignment and, once manually moved, their bucket.
// Both the authoritative store and observer-side optimistic previews use this
// one definition, so the two can never drift.
func ApplyUpdate(prev *Card, u TripUpdate) Card {
	var next Card
	if prev != nil {
		next = *prev
	} else {
		next = Card{TripID: u.TripID}
	}

	next.Traveler = u.Traveler
	next.USADest = u.USADest
	next.ItemsAccepted = u.ItemsAccepted
	next.ItemsReadyToProcess = u.ItemsReadyToProcess
	next.TotalBundleWeight = u.TotalBundleWeight
	next.TripVerificationStatus = u.TripVerificationStatus
	next.LatamDeparture = u.LatamDeparture
	next.LatamArrival = u.LatamArrival
	next.ShipBundle = u.ShipBundle
	next.MaxUSADate = u.MaxUSADate

	if !next.ManuallyMoved {
		next.CurrentBucket = Classify(u.TripVerificationStatus, u.ItemsAccepted, u.ItemsReadyToProcess)
	}
	return next
}

// TripUpdate is one validated row projected from a tabular import, ready to be
// merged into the store. Counts are already non-negative and clamped.
type TripUpdate struct {
	TripID                 string
	Traveler               string
	USADest                string
	ItemsAccepted          int
	ItemsReadyToProcess    int
	TotalBundleWeight      string
	TripVerificationStatus string
	LatamDeparture         string
	LatamArrival           string
	ShipBundle             string
	MaxUSADate             string
}
