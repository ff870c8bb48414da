package generator

// Company name components - descriptor + industry + suffix combinations.
var companyDescriptors = []string{
	"Global", "Pioneer", "Summit", "Atlas", "Vertex",
	"Northwind", "Sterling", "Meridian", "Harbor", "Cascade",
	"Apex", "Beacon", "Crestline", "Orion", "Lakeside",
}

var companyIndustries = []string{
	"Commerce", "Logistics", "Holdings", "Payments", "Retail",
	"Manufacturing", "Trading", "Foods", "Energy", "Media",
}

var companySuffixes = []string{
	"Inc", "LLC", "Group", "Corp", "Partners", "Ltd",
}

var ledgerPurposes = []string{
	"Operations", "Treasury", "Payroll", "Settlements", "Receivables",
	"Payables", "Reserves", "Marketplace", "Subscriptions", "Refunds",
}

var portfolioThemes = []string{
	"Institutional", "Corporate", "Consumer", "Merchant", "Internal",
	"Partner", "Escrow", "Growth", "Legacy", "Priority",
}

var segmentRegions = []string{
	"North America", "South America", "EMEA", "APAC", "LATAM",
	"Domestic", "International", "Online", "Wholesale", "Enterprise",
}

var accountHolderFirstNames = []string{
	"Rowan", "Elena", "Marcus", "Vera", "Lyra", "Mateo",
	"Lucia", "Diego", "Carmen", "Sofia", "Amara", "Kofi",
	"Zara", "Nia", "Kenji", "Mei", "Yuki", "Priya",
	"Arjun", "Ravi", "Layla", "Omar", "Farah", "Sage",
}

var accountHolderSurnames = []string{
	"Blackwood", "Ashford", "Fairchild", "Silverwood", "Reyes",
	"Mendoza", "Castillo", "Vargas", "Tanaka", "Chen",
	"Sharma", "Nguyen", "Kim", "Patel", "Singh",
	"Okonkwo", "Diallo", "Mensah", "Hakim", "Khoury",
}

var transactionMemos = []string{
	"Invoice settlement", "Subscription renewal", "Vendor payout",
	"Customer refund", "Internal transfer", "Payroll disbursement",
	"Marketplace fee", "Currency rebalance", "Service charge",
	"Escrow release",
}

// currencyAssets are fiat codes used before falling back to synthetic ones.
var currencyAssets = []struct {
	code string
	name string
}{
	{"USD", "US Dollar"},
	{"EUR", "Euro"},
	{"GBP", "British Pound"},
	{"BRL", "Brazilian Real"},
	{"JPY", "Japanese Yen"},
	{"CAD", "Canadian Dollar"},
	{"AUD", "Australian Dollar"},
	{"CHF", "Swiss Franc"},
}

var cryptoAssets = []struct {
	code string
	name string
}{
	{"BTC", "Bitcoin"},
	{"ETH", "Ether"},
	{"SOL", "Solana"},
	{"USDC", "USD Coin"},
}
