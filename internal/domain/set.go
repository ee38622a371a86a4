package domain

// ProductSet is a named grouping of products. ProductIDs has set
// semantics and is never nil once returned by the client.
type ProductSet struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ProductIDs []string `json:"product_ids"`
}
