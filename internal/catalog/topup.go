package catalog

// TopUpPackage describes a one-time purchase of additional chats. Purchased
// chats raise the quota ceiling for the current cycle without resetting
// consumption.
type TopUpPackage struct {
	ID          string
	DisplayName string
	ChatsAdded  int32
	PriceCents  int64
}

var topUpPackages = map[string]*TopUpPackage{
	"single": {
		ID:          "single",
		DisplayName: "Single Chat",
		ChatsAdded:  1,
		PriceCents:  900,
	},
	"five_pack": {
		ID:          "five_pack",
		DisplayName: "Five Pack",
		ChatsAdded:  5,
		PriceCents:  3900,
	},
	"ten_pack": {
		ID:          "ten_pack",
		DisplayName: "Ten Pack",
		ChatsAdded:  10,
		PriceCents:  6900,
	},
}

// TopUpOrder defines the display ordering of top-up packages.
var TopUpOrder = []string{"single", "five_pack", "ten_pack"}

// GetTopUpPackage returns a package by ID, or nil for unknown IDs.
func GetTopUpPackage(id string) *TopUpPackage {
	return topUpPackages[id]
}

// TopUpPackages returns all packages in display order.
func TopUpPackages() []*TopUpPackage {
	out := make([]*TopUpPackage, 0, len(TopUpOrder))
	for _, id := range TopUpOrder {
		out = append(out, topUpPackages[id])
	}
	return out
}
