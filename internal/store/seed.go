package store

import "fiado/backend/internal/domain"

// DemoProducts is the starter catalog used by the seeded memory store and cmd/seed.
func DemoProducts() []domain.ProductCreateRequest {
	return []domain.ProductCreateRequest{
		{Name: "Bebida Cola 3L", PriceCents: 350000, Stock: 50, CriticalStock: 10, Barcode: "78010001", Category: "Bebidas"},
		{Name: "Arroz Grado 1 1kg", PriceCents: 120000, Stock: 100, CriticalStock: 20, Barcode: "78010002", Category: "Despensa"},
		{Name: "Aceite Maravilla 1L", PriceCents: 250000, Stock: 60, CriticalStock: 10, Barcode: "78010003", Category: "Despensa"},
		{Name: "Fideos Espirales 400g", PriceCents: 80000, Stock: 80, CriticalStock: 15, Barcode: "78010004", Category: "Despensa"},
		{Name: "Salsa de Tomate 200g", PriceCents: 60000, Stock: 100, CriticalStock: 20, Barcode: "78010005", Category: "Despensa"},
		{Name: "Pan Molde Blanco", PriceCents: 220000, Stock: 30, CriticalStock: 5, Barcode: "78010006", Category: "Panaderia"},
		{Name: "Leche Entera 1L", PriceCents: 110000, Stock: 70, CriticalStock: 10, Barcode: "78010007", Category: "Lacteos"},
		{Name: "Yogurt Frutilla", PriceCents: 45000, Stock: 100, CriticalStock: 20, Barcode: "78010008", Category: "Lacteos"},
		{Name: "Mantequilla 250g", PriceCents: 180000, Stock: 40, CriticalStock: 5, Barcode: "78010009", Category: "Lacteos"},
		{Name: "Queso Gouda 1/4", PriceCents: 280000, Stock: 30, CriticalStock: 5, Barcode: "78010010", Category: "Fiambreria"},
		{Name: "Jamon Pierna 1/4", PriceCents: 300000, Stock: 30, CriticalStock: 5, Barcode: "78010011", Category: "Fiambreria"},
		{Name: "Papas Fritas Lays", PriceCents: 150000, Stock: 50, CriticalStock: 10, Barcode: "78010012", Category: "Snacks"},
		{Name: "Galletas Mora", PriceCents: 90000, Stock: 60, CriticalStock: 10, Barcode: "78010013", Category: "Snacks"},
		{Name: "Chocolate Barra", PriceCents: 120000, Stock: 80, CriticalStock: 15, Barcode: "78010014", Category: "Snacks"},
		{Name: "Jabon Liquido", PriceCents: 180000, Stock: 40, CriticalStock: 5, Barcode: "78010015", Category: "Aseo"},
		{Name: "Detergente 1kg", PriceCents: 250000, Stock: 30, CriticalStock: 5, Barcode: "78010016", Category: "Aseo"},
		{Name: "Papel Higienico 4u", PriceCents: 300000, Stock: 20, CriticalStock: 5, Barcode: "78010017", Category: "Aseo"},
		{Name: "Toalla Nova 2u", PriceCents: 280000, Stock: 20, CriticalStock: 5, Barcode: "78010018", Category: "Aseo"},
		{Name: "Cloro Gel 1L", PriceCents: 100000, Stock: 50, CriticalStock: 10, Barcode: "78010019", Category: "Aseo"},
		{Name: "Fosforos Caja", PriceCents: 20000, Stock: 200, CriticalStock: 50, Barcode: "78010020", Category: "Hogar"},
	}
}
