package catalogv1

// Product — товар на проводе. Цена передаётся строкой с двумя знаками,
// время в RFC 3339.
type Product struct {
	Id          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       string   `json:"price"`
	Category    string   `json:"category"`
	Stock       int64    `json:"stock"`
	Sku         string   `json:"sku,omitempty"`
	IsAvailable bool     `json:"isAvailable"`
	Tags        []string `json:"tags,omitempty"`
	Version     int64    `json:"version"`
	CreatedAt   string   `json:"createdAt,omitempty"`
	UpdatedAt   string   `json:"updatedAt,omitempty"`
}

func (x *Product) GetId() string {
	if x != nil {
		return x.Id
	}
	return ""
}

func (x *Product) GetPrice() string {
	if x != nil {
		return x.Price
	}
	return ""
}

// BulkGetProductsRequest несёт все идентификаторы одного bulk-запроса,
// включая повторы.
type BulkGetProductsRequest struct {
	Ids []string `json:"ids"`
}

func (x *BulkGetProductsRequest) GetIds() []string {
	if x != nil {
		return x.Ids
	}
	return nil
}

// BulkGetProductsResponse содержит найденные товары; отсутствующие id пропущены.
type BulkGetProductsResponse struct {
	Products []*Product `json:"products"`
}

func (x *BulkGetProductsResponse) GetProducts() []*Product {
	if x != nil {
		return x.Products
	}
	return nil
}

type AdjustStockRequest struct {
	ProductId string `json:"productId"`
	Delta     int64  `json:"delta"`
}

func (x *AdjustStockRequest) GetProductId() string {
	if x != nil {
		return x.ProductId
	}
	return ""
}

func (x *AdjustStockRequest) GetDelta() int64 {
	if x != nil {
		return x.Delta
	}
	return 0
}

type AdjustStockResponse struct {
	Product *Product `json:"product"`
}

func (x *AdjustStockResponse) GetProduct() *Product {
	if x != nil {
		return x.Product
	}
	return nil
}
