package api

import "github.com/odyssey-erp/odyssey-console/internal/querycache"

// Resource kinds used as cache tag types.
const (
	KindMe           = "Me"
	KindProfile      = "Profile"
	KindRights       = "Rights"
	KindUser         = "User"
	KindEmployee     = "Employee"
	KindClient       = "Client"
	KindProduct      = "Product"
	KindSubscription = "Subscription"
	KindCart         = "Cart"
	KindOrder        = "Order"
	KindPayment      = "Payment"
)

// Mutation describes what a successful write makes stale. When the write
// targets one record, that record's tag on Kind is invalidated as well.
type Mutation struct {
	Kind        string
	Invalidates []querycache.Tag
}

// Tags returns the tags to invalidate for a write on record id. An id of
// zero means the write created or targeted no single record.
func (m Mutation) Tags(id int64) []querycache.Tag {
	tags := append([]querycache.Tag(nil), m.Invalidates...)
	if id > 0 && m.Kind != "" {
		tags = append(tags, querycache.IDTag(m.Kind, id))
	}
	return tags
}

// Mutations is the invalidation graph of every write endpoint.
var Mutations = map[string]Mutation{
	"updateProfile": {Kind: KindProfile, Invalidates: []querycache.Tag{querycache.TypeTag(KindProfile), querycache.TypeTag(KindMe)}},

	"updateUserRights": {Kind: KindRights},
	"updateUserRole": {Kind: KindUser, Invalidates: []querycache.Tag{
		querycache.ListTag(KindUser),
		querycache.TypeTag(KindRights),
	}},

	"createEmployee": {Kind: KindEmployee, Invalidates: []querycache.Tag{querycache.ListTag(KindEmployee), querycache.ListTag(KindUser)}},
	"deleteEmployee": {Kind: KindEmployee, Invalidates: []querycache.Tag{querycache.ListTag(KindEmployee), querycache.ListTag(KindUser)}},

	"createClient": {Kind: KindClient, Invalidates: []querycache.Tag{querycache.ListTag(KindClient)}},
	"updateClient": {Kind: KindClient, Invalidates: []querycache.Tag{querycache.ListTag(KindClient)}},
	"deleteClient": {Kind: KindClient, Invalidates: []querycache.Tag{querycache.ListTag(KindClient)}},

	"createProduct": {Kind: KindProduct, Invalidates: []querycache.Tag{querycache.ListTag(KindProduct)}},
	"updateProduct": {Kind: KindProduct, Invalidates: []querycache.Tag{querycache.ListTag(KindProduct), querycache.TypeTag(KindCart)}},
	"deleteProduct": {Kind: KindProduct, Invalidates: []querycache.Tag{querycache.ListTag(KindProduct), querycache.TypeTag(KindCart)}},

	"createSubscription": {Kind: KindSubscription, Invalidates: []querycache.Tag{querycache.ListTag(KindSubscription)}},
	"cancelSubscription": {Kind: KindSubscription, Invalidates: []querycache.Tag{querycache.ListTag(KindSubscription)}},

	"addCartItem":    {Kind: KindCart, Invalidates: []querycache.Tag{querycache.TypeTag(KindCart)}},
	"removeCartItem": {Kind: KindCart, Invalidates: []querycache.Tag{querycache.TypeTag(KindCart)}},
	"clearCart":      {Kind: KindCart, Invalidates: []querycache.Tag{querycache.TypeTag(KindCart)}},

	"checkout": {Kind: KindOrder, Invalidates: []querycache.Tag{querycache.ListTag(KindOrder), querycache.TypeTag(KindCart)}},

	"createPaymentIntent": {Kind: KindPayment, Invalidates: []querycache.Tag{querycache.ListTag(KindPayment), querycache.TypeTag(KindOrder)}},
}

func listTags[T any](kind string, page Page[T], id func(T) int64) []querycache.Tag {
	tags := make([]querycache.Tag, 0, len(page.Items)+1)
	tags = append(tags, querycache.ListTag(kind))
	for _, item := range page.Items {
		tags = append(tags, querycache.IDTag(kind, id(item)))
	}
	return tags
}
