package country

// Builtin returns the profiles shipped with the binary.
func Builtin() []Profile {
	return []Profile{
		{
			ID:   "Nigeria",
			Code: "NG",
			SearchTerms: []string{
				"events in {city} Nigeria",
				"{city} events today",
				"Nigerian tech conferences",
				"Nigerian business summit",
				"Nigerian cultural festivals",
				"Nigerian music events",
				"Nigerian art exhibitions",
				"Nigerian startup events",
				"Nigerian networking events",
				"Nigerian trade fairs",
				"Nigerian sports events",
				"events across {country}",
				"nationwide events {country}",
			},
			Cities: []string{
				"Lagos", "Abuja", "Kano", "Ibadan", "Port Harcourt", "Benin City", "Maiduguri",
				"Zaria", "Aba", "Jos", "Ilorin", "Onitsha", "Kaduna", "Enugu", "Warri",
				"Calabar", "Uyo", "Sokoto", "Owerri", "Abeokuta", "Bauchi", "Akure",
				"Makurdi", "Minna", "Ikeja", "Yenagoa", "Jalingo", "Lafia", "Ado-Ekiti",
				"Gombe", "Abakaliki", "Osogbo", "Katsina", "Birnin Kebbi", "Dutse",
				"Asaba", "Awka", "Damaturu", "Gusau", "Lokoja", "Nsukka", "Ile-Ife",
				"Ogbomoso", "Umuahia", "Sapele", "Okene", "Keffi",
			},
			Keywords: []string{"nigeria", "nigerian", "naija", "naira", "nollywood", "afrobeats", "west africa"},
			Exclusions: []string{
				"mogadishu", "somalia", "kenya", "south africa", "ghana", "uganda",
				"usa", "america", "united states", "uk", "britain", "london", "new york",
				"los angeles", "chicago", "canada", "toronto", "australia", "sydney",
				"india", "pakistan", "bangladesh", "dubai", "egypt", "morocco",
				"zimbabwe", "botswana", "zambia", "malawi", "tanzania", "ethiopia",
			},
			PopularVenues: []string{
				"Eko Hotel Lagos", "Landmark Centre Lagos", "Transcorp Hilton Abuja",
				"Shehu Musa Yar'Adua Centre Abuja", "National Theatre Lagos",
				"International Conference Centre Abuja", "Hotel Presidential Port Harcourt",
			},
			LocalSites: []string{
				"nairaland.com", "bellanaija.com", "pulse.ng", "vanguardngr.com", "punchng.com",
				"premiumtimesng.com", "thisdaylive.com", "techcabal.com",
			},
			TimeZone: "Africa/Lagos",
			Currency: "NGN",
		},
		{
			ID:   "United States",
			Code: "US",
			SearchTerms: []string{
				"{city} events", "events in USA", "US concerts", "American festivals",
				"US conferences", "US tech events",
			},
			Cities:        []string{"New York", "Los Angeles", "Chicago", "Houston", "Phoenix", "Philadelphia", "San Antonio", "San Diego", "Dallas", "San Jose"},
			Keywords:      []string{"usa", "united states", "america", "american", "nyc"},
			PopularVenues: []string{"Madison Square Garden", "Hollywood Bowl"},
			LocalSites:    []string{"eventbrite.com", "meetup.com"},
			TimeZone:      "America/New_York",
			Currency:      "USD",
		},
		{
			ID:   "United Kingdom",
			Code: "GB",
			SearchTerms: []string{
				"{city} events", "events in UK", "UK concerts", "British festivals",
				"UK conferences", "UK tech events",
			},
			Cities:        []string{"London", "Birmingham", "Manchester", "Leeds", "Glasgow", "Sheffield", "Bradford", "Liverpool", "Edinburgh", "Bristol"},
			Keywords:      []string{"uk", "united kingdom", "britain", "british", "england", "scotland", "wales"},
			PopularVenues: []string{"O2 Arena", "Royal Albert Hall", "Wembley Stadium"},
			LocalSites:    []string{"eventbrite.co.uk", "timeout.com"},
			TimeZone:      "Europe/London",
			Currency:      "GBP",
		},
		{
			ID:   "Canada",
			Code: "CA",
			SearchTerms: []string{
				"{city} events", "events in Canada", "Canadian concerts", "Canada festivals",
				"Canadian conferences", "Canadian tech events",
			},
			Cities:        []string{"Toronto", "Montreal", "Vancouver", "Calgary", "Ottawa", "Edmonton", "Mississauga", "Winnipeg", "Quebec City", "Hamilton"},
			Keywords:      []string{"canada", "canadian", "ontario", "quebec", "british columbia"},
			PopularVenues: []string{"Rogers Centre", "Bell Centre", "Scotiabank Arena"},
			LocalSites:    []string{"eventbrite.ca", "narcity.com"},
			TimeZone:      "America/Toronto",
			Currency:      "CAD",
		},
		{
			ID:   "Australia",
			Code: "AU",
			SearchTerms: []string{
				"{city} events", "events in Australia", "Australian concerts", "Australia festivals",
				"Australian conferences", "Australian tech events",
			},
			Cities:        []string{"Sydney", "Melbourne", "Brisbane", "Perth", "Adelaide", "Gold Coast", "Newcastle", "Canberra", "Sunshine Coast", "Wollongong"},
			Keywords:      []string{"australia", "australian", "aussie"},
			PopularVenues: []string{"Sydney Opera House", "Rod Laver Arena", "Suncorp Stadium"},
			LocalSites:    []string{"eventbrite.com.au", "timeout.com"},
			TimeZone:      "Australia/Sydney",
			Currency:      "AUD",
		},
	}
}
