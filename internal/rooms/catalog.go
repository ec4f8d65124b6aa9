// Package rooms holds the static room-type catalog shared by the flows:
// display names, same-day sellable rooms, and the capacity-based upgrade
// families used for inventory checks.
package rooms

// Names maps PMS room-type codes to guest-facing names.
var Names = map[string]string{
	"SD": "標準雙人房",
	"ST": "標準三人房",
	"SQ": "標準四人房",
	"CD": "精緻雙人房",
	"CQ": "精緻四人房",
	"ED": "豪華雙人房",
	"DD": "雅緻雙人房",
	"WD": "景觀雙人房",
	"WQ": "景觀四人房",
	"FM": "家庭房",
	"VD": "Villa雙人房",
	"VQ": "Villa四人房",
	"AD": "無障礙雙人房",
	"AQ": "無障礙四人房",
}

// Name returns the display name for a code, falling back to the code.
func Name(code string) string {
	if n, ok := Names[code]; ok {
		return n
	}
	return code
}

// Sellable is one room type offered in the same-day flow.
type Sellable struct {
	Code     string
	Name     string
	Price    int
	Capacity int
	Beds     []string
}

// SameDay lists the room types sold through the chat flow, keyed by
// capacity choice (2/3/4). Prices are defaults; live API prices override.
var SameDay = []Sellable{
	{Code: "SD", Name: "標準雙人房", Price: 2800, Capacity: 2, Beds: []string{"一大床", "兩小床"}},
	{Code: "ST", Name: "標準三人房", Price: 3600, Capacity: 3, Beds: []string{"一大床+一小床", "三小床"}},
	{Code: "SQ", Name: "標準四人房", Price: 4200, Capacity: 4, Beds: []string{"兩大床", "四小床"}},
}

// BySellableCapacity returns the sellable entry for a capacity, or nil.
func BySellableCapacity(capacity int) *Sellable {
	for i := range SameDay {
		if SameDay[i].Capacity == capacity {
			return &SameDay[i]
		}
	}
	return nil
}

// UpgradeFamilies lists, per capacity, the codes whose availability counts
// toward that capacity when the exact code is oversold.
var UpgradeFamilies = map[int][]string{
	2: {"SD", "CD", "DD", "ED", "WD", "AD"},
	3: {"ST", "SQ", "CQ", "WQ", "AQ"},
	4: {"SQ", "CQ", "WQ", "AQ"},
}

// Accessible rooms are held back for guests who need them and are only
// assigned as upgrades when nothing else remains.
var Accessible = map[string]bool{"AD": true, "AQ": true}
