package storefront

// GraphQL documents for the storefront admin API. Operations are named so
// they show up in the storefront's query log.

const queryGetCustomerByID = `query GetCustomerById($id: ID!) {
  customer(id: $id) {
    firstName
    lastName
    email
    phone
  }
}`

const queryGetDefaultAddress = `query GetAddressesDefaultId($id: ID!) {
  customer(id: $id) {
    defaultAddress {
      id
      name
      phone
      address1
      address2
      city
      country
    }
  }
}`

const queryDraftOrdersByCustomer = `query GetDraftOrdersByCustomer($query: String!) {
  draftOrders(first: 50, query: $query) {
    nodes {
      id
      lineItems(first: 1) {
        nodes {
          title
          quantity
          originalUnitPrice
          variant {
            id
          }
        }
      }
    }
  }
}`

const queryListDiscounts = `query GetDiscounts {
  codeDiscountNodes(first: 50) {
    nodes {
      codeDiscount {
        ... on DiscountCodeBasic {
          title
          summary
          customerGets {
            value {
              ... on DiscountPercentage {
                percentage
              }
            }
          }
        }
      }
    }
  }
}`

const mutationCreateDraftOrder = `mutation CreateDraftOrder($input: DraftOrderInput!) {
  draftOrderCreate(input: $input) {
    draftOrder {
      id
    }
    userErrors {
      field
      message
    }
  }
}`

const mutationUpdateDraftOrder = `mutation UpdateDraftOrder($id: ID!, $input: DraftOrderInput!) {
  draftOrderUpdate(id: $id, input: $input) {
    draftOrder {
      id
    }
    userErrors {
      field
      message
    }
  }
}`

const mutationDeleteDraftOrder = `mutation DeleteDraftOrder($id: ID!) {
  draftOrderDelete(input: {id: $id}) {
    deletedId
  }
}`

const mutationInvoiceSend = `mutation DraftOrderInvoiceSend($id: ID!) {
  draftOrderInvoiceSend(id: $id) {
    draftOrder {
      id
    }
    userErrors {
      field
      message
    }
  }
}`

const mutationMarkAsPaid = `mutation MarkAsPaid($id: ID!) {
  orderMarkAsPaid(input: {id: $id}) {
    order {
      id
    }
    userErrors {
      field
      message
    }
  }
}`

const mutationAddTags = `mutation AddTags($id: ID!, $tags: [String!]!) {
  tagsAdd(id: $id, tags: $tags) {
    node {
      id
    }
    userErrors {
      field
      message
    }
  }
}`
