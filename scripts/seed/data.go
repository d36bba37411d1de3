package main

import (
	"fmt"
	"time"
)

type seedChantier struct {
	name   string
	client string
}

type seedSituation struct {
	chantier   string
	month      int
	year       int
	number     string
	amount     string
	received   string
	sent       time.Time
	delay      *int
	receivedOn time.Time
}

type seedInvoice struct {
	chantier string
	number   string
	amount   string
	paid     bool
	sent     time.Time
	created  time.Time
	delay    *int
	paidOn   time.Time
}

type seedOrder struct {
	chantier string
	number   string
	due      string
	paid     string
	ordered  time.Time
	dueOn    time.Time
	paidOn   time.Time
}

type seedSupplier struct {
	name   string
	orders []seedOrder
}

type seedSet struct {
	chantiers  []seedChantier
	situations []seedSituation
	invoices   []seedInvoice
	suppliers  []seedSupplier
}

// demoData builds two chantiers with monthly situations over the first half
// of year, a few invoices and supplier orders, some paid late and some not
// paid at all.
func demoData(year int) seedSet {
	d := func(month, day int) time.Time {
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	}
	delay := func(days int) *int { return &days }

	set := seedSet{
		chantiers: []seedChantier{
			{name: "Écoles Jules Ferry", client: "Mairie de Lyon"},
			{name: "Résidence Les Tilleuls", client: "SCI Tilleuls"},
		},
	}

	for month := 1; month <= 6; month++ {
		for i, chantier := range set.chantiers {
			s := seedSituation{
				chantier: chantier.name,
				month:    month,
				year:     year,
				number:   fmt.Sprintf("Situation n°%d", month),
				amount:   fmt.Sprintf("%d.00", 10000+1500*month+5000*i),
				sent:     d(month, 28),
				delay:    delay(45),
			}
			// The last two months stay unpaid to populate the aging report.
			if month <= 4 {
				s.received = s.amount
				s.receivedOn = d(month, 28).AddDate(0, 0, 40+5*month)
			}
			set.situations = append(set.situations, s)
		}
	}

	set.invoices = []seedInvoice{
		{chantier: "Écoles Jules Ferry", number: "FA-2024-001", amount: "3200.00", paid: true, sent: d(2, 10), delay: delay(30), paidOn: d(3, 20)},
		{chantier: "Écoles Jules Ferry", number: "FA-2024-002", amount: "1850.50", sent: d(5, 3), delay: delay(30)},
		{chantier: "Résidence Les Tilleuls", number: "FA-2024-003", amount: "990.00", created: d(4, 15)},
	}

	set.suppliers = []seedSupplier{
		{name: "Béton Rhône", orders: []seedOrder{
			{chantier: "Écoles Jules Ferry", number: "BC-101", due: "8400.00", paid: "8400.00", ordered: d(1, 5), dueOn: d(2, 5), paidOn: d(2, 12)},
			{chantier: "Résidence Les Tilleuls", number: "BC-104", due: "5200.00", ordered: d(4, 2), dueOn: d(5, 2)},
		}},
		{name: "Aciers du Sud", orders: []seedOrder{
			{chantier: "Résidence Les Tilleuls", number: "BC-102", due: "12650.00", paid: "12000.00", ordered: d(2, 1), dueOn: d(3, 1), paidOn: d(2, 27)},
		}},
	}
	return set
}
