// Package records defines the normalized e-commerce entities the analytics
// engine consumes: customers, orders, order items, payments, reviews,
// products, sellers and category translations.
//
// The engine treats these tables as a read-only snapshot supplied by an
// external loader. Nullable timestamps are represented as zero time values;
// status strings follow the marketplace vocabulary ("delivered", "shipped",
// "canceled", ...).
package records
